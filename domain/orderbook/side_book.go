package orderbook

import (
	"fmt"
	"math"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const levelTreeDegree = 32

// Crosses reports whether a level resting on side at levelPrice can trade
// with an incoming order limited at limit. This is the only definition of
// crossability; both the pre-trade check and the execution loop use it.
func Crosses(side Side, levelPrice, limit decimal.Decimal) bool {
	if side == Buy {
		return levelPrice.GreaterThanOrEqual(limit)
	}
	return levelPrice.LessThanOrEqual(limit)
}

// SideBook is one side of one symbol. Levels are kept in a B-tree ordered
// by aggressiveness, so the minimum item is always the best level and empty
// levels are deleted outright.
type SideBook struct {
	side   Side
	levels *btree.BTreeG[*PriceLevel]
	volume int64
	orders int
}

func NewSideBook(side Side) *SideBook {
	less := func(a, b *PriceLevel) bool { return a.price.LessThan(b.price) }
	if side == Buy {
		less = func(a, b *PriceLevel) bool { return a.price.GreaterThan(b.price) }
	}
	return &SideBook{
		side:   side,
		levels: btree.NewG(levelTreeDegree, less),
	}
}

func (s *SideBook) Side() Side         { return s.side }
func (s *SideBook) TotalVolume() int64 { return s.volume }
func (s *SideBook) Depth() int         { return s.levels.Len() }
func (s *SideBook) OrderCount() int    { return s.orders }

func (s *SideBook) level(price decimal.Decimal) *PriceLevel {
	lvl, ok := s.levels.Get(&PriceLevel{price: price})
	if !ok {
		return nil
	}
	return lvl
}

func (s *SideBook) best() *PriceLevel {
	lvl, ok := s.levels.Min()
	if !ok {
		return nil
	}
	if lvl.Empty() {
		panic(fmt.Sprintf("orderbook: empty level %s left in %s index", lvl.price, s.side))
	}
	return lvl
}

// AddOrder appends o to the level at its price, creating the level first if
// needed.
func (s *SideBook) AddOrder(o *Order) {
	if o.side != s.side {
		panic(fmt.Sprintf("orderbook: %s order routed to %s side", o.side, s.side))
	}
	if o.volume > math.MaxInt64-s.volume {
		panic(fmt.Sprintf("orderbook: %s total %d cannot take %d more", s.side, s.volume, o.volume))
	}
	lvl := s.level(o.price)
	if lvl == nil {
		lvl = newPriceLevel(o.price)
		s.levels.ReplaceOrInsert(lvl)
	}
	lvl.AddOrder(o)
	s.volume += o.volume
	s.orders++
}

// BestPrice returns the most aggressive non-empty price.
func (s *SideBook) BestPrice() (decimal.Decimal, bool) {
	lvl := s.best()
	if lvl == nil {
		return decimal.Decimal{}, false
	}
	return lvl.price, true
}

// BestOrder returns the order that would trade next. Read only.
func (s *SideBook) BestOrder() *Order {
	lvl := s.best()
	if lvl == nil {
		return nil
	}
	return lvl.head
}

// PopBestOrder removes the oldest order at the best price. The level is
// dropped from the index once it is empty.
func (s *SideBook) PopBestOrder() *Order {
	lvl := s.best()
	if lvl == nil {
		return nil
	}
	o := lvl.PopOldest()
	s.volume -= o.volume
	s.orders--
	if lvl.Empty() {
		s.levels.Delete(lvl)
	}
	return o
}

// ReduceBestOrder takes delta off the best order in place. The order keeps
// its position at the head of the level.
func (s *SideBook) ReduceBestOrder(delta int64) *Order {
	lvl := s.best()
	if lvl == nil {
		panic("orderbook: reduce on empty side")
	}
	o := lvl.head
	if delta <= 0 || delta >= o.volume {
		panic(fmt.Sprintf("orderbook: reduce by %d invalid for head volume %d", delta, o.volume))
	}
	o.volume -= delta
	lvl.AdjustVolume(-delta)
	s.volume -= delta
	return o
}

// CrossableVolume sums the volume resting at prices at least as good for a
// taker as limit. It does not mutate the book.
func (s *SideBook) CrossableVolume(limit decimal.Decimal) int64 {
	var total int64
	s.levels.Ascend(func(lvl *PriceLevel) bool {
		if !Crosses(s.side, lvl.price, limit) {
			return false
		}
		total += lvl.volume
		return true
	})
	return total
}

// RemoveByID removes an order resting at price.
func (s *SideBook) RemoveByID(id uuid.UUID, price decimal.Decimal) (*Order, bool) {
	lvl := s.level(price)
	if lvl == nil {
		return nil, false
	}
	o, ok := lvl.RemoveByID(id)
	if !ok {
		return nil, false
	}
	s.volume -= o.volume
	s.orders--
	if lvl.Empty() {
		s.levels.Delete(lvl)
	}
	return o, true
}

// Find returns a copy of the order with id resting at price.
func (s *SideBook) Find(id uuid.UUID, price decimal.Decimal) (View, bool) {
	lvl := s.level(price)
	if lvl == nil {
		return View{}, false
	}
	for o := lvl.head; o != nil; o = o.next {
		if o.id == id {
			return o.View(), true
		}
	}
	return View{}, false
}

func (s *SideBook) VolumeAtPrice(price decimal.Decimal) int64 {
	if lvl := s.level(price); lvl != nil {
		return lvl.volume
	}
	return 0
}

// Walk visits levels best first until fn returns false.
func (s *SideBook) Walk(fn func(*PriceLevel) bool) {
	s.levels.Ascend(func(lvl *PriceLevel) bool {
		return fn(lvl)
	})
}
