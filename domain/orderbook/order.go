package orderbook

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Side int
type TimeInForce int

const (
	Buy Side = iota + 1
	Sell
)

const (
	GoodTilCancel TimeInForce = iota + 1
	FillOrKill
)

var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrEmptyOwner    = errors.Wrap(ErrInvalidOrder, "owner is required")
	ErrEmptySymbol   = errors.Wrap(ErrInvalidOrder, "symbol is required")
	ErrInvalidSide   = errors.Wrap(ErrInvalidOrder, "unknown side")
	ErrInvalidPrice  = errors.Wrap(ErrInvalidOrder, "price must be positive")
	ErrInvalidVolume = errors.Wrap(ErrInvalidOrder, "volume must be positive")
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the side an order of side s executes against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (t TimeInForce) String() string {
	switch t {
	case GoodTilCancel:
		return "GTC"
	case FillOrKill:
		return "FOK"
	default:
		return fmt.Sprintf("TimeInForce(%d)", int(t))
	}
}

func (t TimeInForce) Valid() bool {
	return t == GoodTilCancel || t == FillOrKill
}

// Order is a limit order. Everything except the remaining volume is fixed
// at construction; while the order rests, only the book that holds it
// changes its volume.
type Order struct {
	id     uuid.UUID
	owner  string
	symbol string
	price  decimal.Decimal
	side   Side
	seq    uint64
	volume int64

	next *Order
	prev *Order
}

// NewOrder validates the inputs and builds an order with a fresh id and the
// given creation sequence number.
func NewOrder(owner, symbol string, price decimal.Decimal, volume int64, side Side, seq uint64) (*Order, error) {
	switch {
	case owner == "":
		return nil, ErrEmptyOwner
	case symbol == "":
		return nil, ErrEmptySymbol
	case !side.Valid():
		return nil, ErrInvalidSide
	case !price.IsPositive():
		return nil, errors.Wrapf(ErrInvalidPrice, "got %s", price)
	case volume <= 0:
		return nil, errors.Wrapf(ErrInvalidVolume, "got %d", volume)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "allocate order id")
	}
	return &Order{
		id:     id,
		owner:  owner,
		symbol: symbol,
		price:  price,
		side:   side,
		seq:    seq,
		volume: volume,
	}, nil
}

func (o *Order) ID() uuid.UUID          { return o.id }
func (o *Order) Owner() string          { return o.owner }
func (o *Order) Symbol() string         { return o.symbol }
func (o *Order) Price() decimal.Decimal { return o.price }
func (o *Order) Side() Side             { return o.side }
func (o *Order) Seq() uint64            { return o.seq }
func (o *Order) Volume() int64          { return o.volume }

// SetRemaining is used by the engine on an order it still holds, before the
// order is handed to a book.
func (o *Order) SetRemaining(v int64) {
	if v <= 0 || v > o.volume {
		panic(fmt.Sprintf("orderbook: remaining %d out of range for order %s with volume %d", v, o.id, o.volume))
	}
	o.volume = v
}

// View is a detached copy of an order's state, safe to keep after the order
// has left the book.
type View struct {
	ID     uuid.UUID
	Owner  string
	Symbol string
	Price  decimal.Decimal
	Side   Side
	Seq    uint64
	Volume int64
}

func (o *Order) View() View {
	return View{
		ID:     o.id,
		Owner:  o.owner,
		Symbol: o.symbol,
		Price:  o.price,
		Side:   o.side,
		Seq:    o.seq,
		Volume: o.volume,
	}
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{ID=%s, Owner=%s, %s %d %s @ %s, Seq=%d}",
		o.id, o.owner, o.side, o.volume, o.symbol, o.price, o.seq)
}
