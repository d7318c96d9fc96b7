package engine

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"matchbook/domain/orderbook"
	"matchbook/infra/sequence"
)

var ErrInvalidTimeInForce = errors.Wrap(orderbook.ErrInvalidOrder, "unknown time in force")

// SequenceSource supplies creation sequence numbers for new orders.
type SequenceSource interface {
	Next() uint64
}

type location struct {
	symbol string
	side   orderbook.Side
	price  decimal.Decimal
}

// Engine matches incoming limit orders against an OrderBook by price then
// time priority. It is synchronous and single-writer; callers that share
// an Engine between goroutines must serialize every call.
type Engine struct {
	book  *orderbook.OrderBook
	seq   SequenceSource
	index map[uuid.UUID]location

	checkInvariants bool
}

type Option func(*Engine)

// WithSequencer replaces the default in-process sequencer.
func WithSequencer(s SequenceSource) Option {
	return func(e *Engine) {
		e.seq = s
	}
}

// WithInvariantChecks makes the engine verify every book aggregate after
// each mutation and panic on the first violation.
func WithInvariantChecks(on bool) Option {
	return func(e *Engine) {
		e.checkInvariants = on
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		book:  orderbook.NewOrderBook(),
		index: make(map[uuid.UUID]location),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seq == nil {
		e.seq = sequence.New(0)
	}
	return e
}

// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────

// PlaceOrder submits a limit order. Invalid input is returned as an error
// and never touches the book; a FillOrKill order that cannot fill entirely
// right now comes back Rejected with the book unchanged.
func (e *Engine) PlaceOrder(
	owner, symbol string,
	price decimal.Decimal,
	volume int64,
	side orderbook.Side,
	tif orderbook.TimeInForce,
) (Outcome, error) {
	if !tif.Valid() {
		return Outcome{}, errors.Wrapf(ErrInvalidTimeInForce, "got %d", int(tif))
	}
	o, err := orderbook.NewOrder(owner, symbol, price, volume, side, e.seq.Next())
	if err != nil {
		return Outcome{}, err
	}
	// Resting totals are int64; an order that could not rest in full
	// without overflowing its side is refused before it can match.
	if own := e.book.TotalVolume(symbol, side); volume > math.MaxInt64-own {
		return Outcome{}, errors.Wrapf(orderbook.ErrInvalidVolume,
			"%d would overflow %s %s resting total %d", volume, symbol, side, own)
	}

	out := Outcome{
		OrderID:     o.ID(),
		Order:       o.View(),
		TimeInForce: tif,
	}

	opp := side.Opposite()
	total := e.book.TotalVolume(symbol, opp)
	if total == 0 {
		if tif == orderbook.FillOrKill {
			out.Status = Rejected
			return out, nil
		}
		e.rest(o)
		out.Status = Resting
		out.Remaining = o.Volume()
		e.verify()
		return out, nil
	}

	opposing := e.book.Side(symbol, opp)
	crossable := opposing.CrossableVolume(price)
	if tif == orderbook.FillOrKill && (total < volume || crossable < volume) {
		out.Status = Rejected
		return out, nil
	}

	remaining := volume
	for remaining > 0 && crossable > 0 {
		maker := opposing.BestOrder()
		if maker == nil {
			panic(fmt.Sprintf("engine: %s %s side empty with %d crossable left", symbol, opp, crossable))
		}
		if !orderbook.Crosses(opp, maker.Price(), price) {
			panic(fmt.Sprintf("engine: best %s level %s does not cross limit %s with %d crossable left",
				opp, maker.Price(), price, crossable))
		}

		if maker.Volume() > remaining {
			opposing.ReduceBestOrder(remaining)
			out.Fills = append(out.Fills, newFill(o, maker, remaining, maker.Volume()))
			crossable -= remaining
			remaining = 0
			break
		}

		maker = opposing.PopBestOrder()
		delete(e.index, maker.ID())
		traded := maker.Volume()
		out.Fills = append(out.Fills, newFill(o, maker, traded, 0))
		remaining -= traded
		crossable -= traded
	}

	if remaining == 0 {
		out.Status = FullyFilled
		e.verify()
		return out, nil
	}

	if tif == orderbook.FillOrKill {
		panic(fmt.Sprintf("engine: fill-or-kill order %s passed pre-trade check but left %d unfilled", o.ID(), remaining))
	}

	o.SetRemaining(remaining)
	e.rest(o)
	out.Status = Resting
	out.Remaining = remaining
	e.verify()
	return out, nil
}

// CancelOrder removes a resting order. It returns false if id is not
// currently resting, including when it was already cancelled or filled.
func (e *Engine) CancelOrder(id uuid.UUID) bool {
	loc, ok := e.index[id]
	if !ok {
		return false
	}
	if _, removed := e.book.RemoveByID(loc.symbol, loc.side, id, loc.price); !removed {
		panic(fmt.Sprintf("engine: order %s indexed at %s %s %s but not on the book", id, loc.symbol, loc.side, loc.price))
	}
	delete(e.index, id)
	e.verify()
	return true
}

func (e *Engine) rest(o *orderbook.Order) {
	e.book.AddOrder(o)
	e.index[o.ID()] = location{symbol: o.Symbol(), side: o.Side(), price: o.Price()}
}

func newFill(taker, maker *orderbook.Order, volume, makerRemaining int64) Fill {
	return Fill{
		MakerOrderID:   maker.ID(),
		MakerOwner:     maker.Owner(),
		TakerOrderID:   taker.ID(),
		TakerOwner:     taker.Owner(),
		TakerSide:      taker.Side(),
		Symbol:         taker.Symbol(),
		Price:          maker.Price(),
		Volume:         volume,
		MakerRemaining: makerRemaining,
	}
}

// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────

// QuotePrice returns the best resting price on side, or false when there
// is no interest.
func (e *Engine) QuotePrice(symbol string, side orderbook.Side) (decimal.Decimal, bool) {
	return e.book.BestPrice(symbol, side)
}

func (e *Engine) VolumeAtPrice(symbol string, side orderbook.Side, price decimal.Decimal) int64 {
	return e.book.VolumeAtPrice(symbol, side, price)
}

func (e *Engine) TotalVolume(symbol string, side orderbook.Side) int64 {
	return e.book.TotalVolume(symbol, side)
}

// Resting returns a copy of a resting order.
func (e *Engine) Resting(id uuid.UUID) (orderbook.View, bool) {
	loc, ok := e.index[id]
	if !ok {
		return orderbook.View{}, false
	}
	return e.book.Side(loc.symbol, loc.side).Find(id, loc.price)
}

// RestingCount is the number of orders currently on the book.
func (e *Engine) RestingCount() int {
	return len(e.index)
}

func (e *Engine) Symbols() []string {
	return e.book.Symbols()
}

// Levels lists the levels on one side, best first.
func (e *Engine) Levels(symbol string, side orderbook.Side) []Level {
	s := e.book.Side(symbol, side)
	if s == nil {
		return nil
	}
	out := make([]Level, 0, s.Depth())
	s.Walk(func(lvl *orderbook.PriceLevel) bool {
		out = append(out, Level{
			Price:  lvl.Price(),
			Volume: lvl.Volume(),
			Orders: lvl.Orders(),
		})
		return true
	})
	return out
}

func (e *Engine) Snapshot(symbol string) BookSnapshot {
	return BookSnapshot{
		Symbol: symbol,
		Bids:   e.Levels(symbol, orderbook.Buy),
		Asks:   e.Levels(symbol, orderbook.Sell),
	}
}

// CheckInvariants verifies every aggregate on the book, that no book is
// crossed and that the id index covers exactly the resting orders.
func (e *Engine) CheckInvariants() error {
	if err := e.book.Check(); err != nil {
		return err
	}
	resting := 0
	for _, sym := range e.book.Symbols() {
		resting += e.book.Side(sym, orderbook.Buy).OrderCount()
		resting += e.book.Side(sym, orderbook.Sell).OrderCount()
	}
	for _, sym := range e.book.Symbols() {
		bid, hasBid := e.book.BestPrice(sym, orderbook.Buy)
		ask, hasAsk := e.book.BestPrice(sym, orderbook.Sell)
		if hasBid && hasAsk && bid.GreaterThanOrEqual(ask) {
			return errors.Wrapf(orderbook.ErrInvariant, "%s: book crossed, bid %s ask %s", sym, bid, ask)
		}
	}
	if resting != len(e.index) {
		return errors.Wrapf(orderbook.ErrInvariant, "index holds %d ids, book holds %d orders", len(e.index), resting)
	}
	for id, loc := range e.index {
		if _, ok := e.book.Side(loc.symbol, loc.side).Find(id, loc.price); !ok {
			return errors.Wrapf(orderbook.ErrInvariant, "indexed order %s missing at %s %s %s", id, loc.symbol, loc.side, loc.price)
		}
	}
	return nil
}

func (e *Engine) verify() {
	if !e.checkInvariants {
		return
	}
	if err := e.CheckInvariants(); err != nil {
		panic(err)
	}
}
