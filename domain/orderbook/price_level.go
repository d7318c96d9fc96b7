package orderbook

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceLevel is a FIFO queue of orders at a single price.
type PriceLevel struct {
	price decimal.Decimal

	head *Order
	tail *Order

	volume int64
	count  int
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{price: price}
}

func (p *PriceLevel) Price() decimal.Decimal { return p.price }
func (p *PriceLevel) Volume() int64          { return p.volume }
func (p *PriceLevel) Len() int               { return p.count }
func (p *PriceLevel) Empty() bool            { return p.volume == 0 }

// AddOrder appends o to the tail.
func (p *PriceLevel) AddOrder(o *Order) {
	o.next, o.prev = nil, nil
	if p.tail == nil {
		p.head = o
	} else {
		p.tail.next = o
		o.prev = p.tail
	}
	p.tail = o
	p.volume += o.volume
	p.count++
}

// PopOldest removes and returns the head, or nil when the level is empty.
func (p *PriceLevel) PopOldest() *Order {
	o := p.head
	if o == nil {
		return nil
	}
	p.unlink(o)
	return o
}

// AdjustVolume changes the aggregate without touching any order. The caller
// must apply the same delta to the order it reduced.
func (p *PriceLevel) AdjustVolume(delta int64) {
	p.volume += delta
	if p.volume < 0 {
		panic(fmt.Sprintf("orderbook: level %s volume went negative (%d)", p.price, p.volume))
	}
}

// RemoveByID unlinks the order with the given id, keeping the relative order
// of the rest.
func (p *PriceLevel) RemoveByID(id uuid.UUID) (*Order, bool) {
	for o := p.head; o != nil; o = o.next {
		if o.id == id {
			p.unlink(o)
			return o, true
		}
	}
	return nil, false
}

func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next, o.prev = nil, nil
	p.volume -= o.volume
	p.count--
}

// Orders returns detached views of the queue, oldest first.
func (p *PriceLevel) Orders() []View {
	out := make([]View, 0, p.count)
	for o := p.head; o != nil; o = o.next {
		out = append(out, o.View())
	}
	return out
}

func (p *PriceLevel) String() string {
	return fmt.Sprintf("PriceLevel{Price=%s, Orders=%d, Volume=%d}", p.price, p.count, p.volume)
}
