package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"matchbook/domain/orderbook"
)

type Status int

const (
	Rejected Status = iota + 1
	FullyFilled
	Resting
)

func (s Status) String() string {
	switch s {
	case Rejected:
		return "rejected"
	case FullyFilled:
		return "filled"
	case Resting:
		return "resting"
	default:
		return "unknown"
	}
}

// Fill is one execution between the incoming order and a resting one. The
// price is always the resting order's price.
type Fill struct {
	MakerOrderID   uuid.UUID
	MakerOwner     string
	TakerOrderID   uuid.UUID
	TakerOwner     string
	TakerSide      orderbook.Side
	Symbol         string
	Price          decimal.Decimal
	Volume         int64
	MakerRemaining int64
}

// MakerDone reports whether the resting order left the book with this fill.
func (f Fill) MakerDone() bool {
	return f.MakerRemaining == 0
}

// Outcome is the result of PlaceOrder.
//
// Order is the incoming order as submitted. For Resting, Remaining is the
// volume left on the book under OrderID; for FullyFilled and Rejected it is
// zero.
type Outcome struct {
	Status      Status
	OrderID     uuid.UUID
	Order       orderbook.View
	TimeInForce orderbook.TimeInForce
	Remaining   int64
	Fills       []Fill
}

// FilledVolume is the total volume executed by the incoming order.
func (o Outcome) FilledVolume() int64 {
	var v int64
	for _, f := range o.Fills {
		v += f.Volume
	}
	return v
}

// Level is a read-only view of one price level for renderers.
type Level struct {
	Price  decimal.Decimal
	Volume int64
	Orders []orderbook.View
}

// BookSnapshot is both sides of one symbol, best level first.
type BookSnapshot struct {
	Symbol string
	Bids   []Level
	Asks   []Level
}
