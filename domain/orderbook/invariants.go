package orderbook

import (
	"math"

	"github.com/pkg/errors"
)

var ErrInvariant = errors.New("order book invariant violated")

func (p *PriceLevel) check(side Side) error {
	var sum int64
	n := 0
	var prev *Order
	for o := p.head; o != nil; o = o.next {
		if o.prev != prev {
			return errors.Wrapf(ErrInvariant, "level %s: broken back link at order %s", p.price, o.id)
		}
		if o.volume <= 0 {
			return errors.Wrapf(ErrInvariant, "level %s: order %s rests with volume %d", p.price, o.id, o.volume)
		}
		if !o.price.Equal(p.price) || o.side != side {
			return errors.Wrapf(ErrInvariant, "level %s: order %s belongs to %s @ %s", p.price, o.id, o.side, o.price)
		}
		if o.volume > math.MaxInt64-sum {
			return errors.Wrapf(ErrInvariant, "level %s: order volumes overflow", p.price)
		}
		sum += o.volume
		n++
		prev = o
	}
	if p.tail != prev {
		return errors.Wrapf(ErrInvariant, "level %s: tail does not match last order", p.price)
	}
	if sum != p.volume {
		return errors.Wrapf(ErrInvariant, "level %s: aggregate %d, orders sum to %d", p.price, p.volume, sum)
	}
	if n != p.count {
		return errors.Wrapf(ErrInvariant, "level %s: count %d, found %d orders", p.price, p.count, n)
	}
	return nil
}

// Check verifies the side total, order count and every level aggregate, and
// that no empty level is indexed.
func (s *SideBook) Check() error {
	var (
		sum    int64
		orders int
		err    error
		prev   *PriceLevel
	)
	s.levels.Ascend(func(lvl *PriceLevel) bool {
		if lvl.Empty() {
			err = errors.Wrapf(ErrInvariant, "%s: empty level %s is indexed", s.side, lvl.price)
			return false
		}
		if prev != nil && !Crosses(s.side, prev.price, lvl.price) {
			err = errors.Wrapf(ErrInvariant, "%s: level %s ordered before %s", s.side, prev.price, lvl.price)
			return false
		}
		if err = lvl.check(s.side); err != nil {
			return false
		}
		if lvl.volume > math.MaxInt64-sum {
			err = errors.Wrapf(ErrInvariant, "%s: level volumes overflow", s.side)
			return false
		}
		sum += lvl.volume
		orders += lvl.count
		prev = lvl
		return true
	})
	if err != nil {
		return err
	}
	if sum != s.volume {
		return errors.Wrapf(ErrInvariant, "%s: total %d, levels sum to %d", s.side, s.volume, sum)
	}
	if orders != s.orders {
		return errors.Wrapf(ErrInvariant, "%s: order count %d, levels hold %d", s.side, s.orders, orders)
	}
	return nil
}

// Check runs SideBook.Check on every side of every symbol.
func (b *OrderBook) Check() error {
	for _, sym := range b.Symbols() {
		bk := b.symbols[sym]
		if err := bk.bids.Check(); err != nil {
			return errors.WithMessage(err, sym)
		}
		if err := bk.asks.Check(); err != nil {
			return errors.WithMessage(err, sym)
		}
	}
	return nil
}
