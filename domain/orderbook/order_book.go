package orderbook

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type book struct {
	bids *SideBook
	asks *SideBook
}

// OrderBook routes orders to per-symbol side books. It is single-writer.
type OrderBook struct {
	symbols map[string]*book
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		symbols: make(map[string]*book),
	}
}

// AddOrder rests o on its own side, creating both sides of a new symbol.
func (b *OrderBook) AddOrder(o *Order) {
	bk, ok := b.symbols[o.symbol]
	if !ok {
		bk = &book{bids: NewSideBook(Buy), asks: NewSideBook(Sell)}
		b.symbols[o.symbol] = bk
	}
	if o.side == Buy {
		bk.bids.AddOrder(o)
	} else {
		bk.asks.AddOrder(o)
	}
}

// Side returns the side book for symbol, or nil if the symbol is unseen.
func (b *OrderBook) Side(symbol string, side Side) *SideBook {
	bk, ok := b.symbols[symbol]
	if !ok {
		return nil
	}
	switch side {
	case Buy:
		return bk.bids
	case Sell:
		return bk.asks
	default:
		return nil
	}
}

func (b *OrderBook) BestPrice(symbol string, side Side) (decimal.Decimal, bool) {
	if s := b.Side(symbol, side); s != nil {
		return s.BestPrice()
	}
	return decimal.Decimal{}, false
}

func (b *OrderBook) RemoveByID(symbol string, side Side, id uuid.UUID, price decimal.Decimal) (*Order, bool) {
	if s := b.Side(symbol, side); s != nil {
		return s.RemoveByID(id, price)
	}
	return nil, false
}

func (b *OrderBook) TotalVolume(symbol string, side Side) int64 {
	if s := b.Side(symbol, side); s != nil {
		return s.TotalVolume()
	}
	return 0
}

func (b *OrderBook) VolumeAtPrice(symbol string, side Side, price decimal.Decimal) int64 {
	if s := b.Side(symbol, side); s != nil {
		return s.VolumeAtPrice(price)
	}
	return 0
}

// Symbols lists every symbol the book has seen, sorted.
func (b *OrderBook) Symbols() []string {
	out := make([]string, 0, len(b.symbols))
	for sym := range b.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
