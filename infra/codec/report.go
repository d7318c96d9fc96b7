package codec

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/orderbook"
)

type Kind uint8

const (
	KindRejected Kind = iota + 1
	KindFilled
	KindResting
	KindFill
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindFilled:
		return "filled"
	case KindResting:
		return "resting"
	case KindFill:
		return "fill"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Report is one execution report. For KindFill, OrderID is the incoming
// order and CounterpartyID the resting one; Price and Volume describe the
// fill. For the other kinds they describe the order itself.
type Report struct {
	Seq            uint64
	Kind           Kind
	OrderID        uuid.UUID
	Owner          string
	Symbol         string
	Side           orderbook.Side
	Price          decimal.Decimal
	Volume         int64
	CounterpartyID uuid.UUID
	TimeUnixNano   int64
}

// Field numbers of the report message on the wire.
const (
	fieldSeq            protowire.Number = 1
	fieldKind           protowire.Number = 2
	fieldOrderID        protowire.Number = 3
	fieldOwner          protowire.Number = 4
	fieldSymbol         protowire.Number = 5
	fieldSide           protowire.Number = 6
	fieldPrice          protowire.Number = 7
	fieldVolume         protowire.Number = 8
	fieldCounterpartyID protowire.Number = 9
	fieldTime           protowire.Number = 10
)

var ErrMalformed = errors.New("malformed report")

// Encode writes r in protobuf wire format. Zero-valued fields are omitted,
// as proto3 does.
func Encode(r Report) []byte {
	b := make([]byte, 0, 128)
	b = appendVarint(b, fieldSeq, r.Seq)
	b = appendVarint(b, fieldKind, uint64(r.Kind))
	b = appendUUID(b, fieldOrderID, r.OrderID)
	b = appendString(b, fieldOwner, r.Owner)
	b = appendString(b, fieldSymbol, r.Symbol)
	b = appendVarint(b, fieldSide, uint64(r.Side))
	if !r.Price.IsZero() {
		b = appendString(b, fieldPrice, r.Price.String())
	}
	b = appendVarint(b, fieldVolume, uint64(r.Volume))
	b = appendUUID(b, fieldCounterpartyID, r.CounterpartyID)
	b = appendVarint(b, fieldTime, uint64(r.TimeUnixNano))
	return b
}

// Decode parses a report written by Encode. Unknown fields are skipped.
func Decode(b []byte) (Report, error) {
	var r Report
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Report{}, errors.Wrapf(ErrMalformed, "tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldSeq, fieldKind, fieldSide, fieldVolume, fieldTime:
			if typ != protowire.VarintType {
				return Report{}, errors.Wrapf(ErrMalformed, "field %d: wire type %d", num, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Report{}, errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldSeq:
				r.Seq = v
			case fieldKind:
				r.Kind = Kind(v)
			case fieldSide:
				r.Side = orderbook.Side(v)
			case fieldVolume:
				r.Volume = int64(v)
			case fieldTime:
				r.TimeUnixNano = int64(v)
			}

		case fieldOrderID, fieldOwner, fieldSymbol, fieldPrice, fieldCounterpartyID:
			if typ != protowire.BytesType {
				return Report{}, errors.Wrapf(ErrMalformed, "field %d: wire type %d", num, typ)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Report{}, errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			var err error
			switch num {
			case fieldOrderID:
				r.OrderID, err = uuid.FromBytes(v)
			case fieldCounterpartyID:
				r.CounterpartyID, err = uuid.FromBytes(v)
			case fieldOwner:
				r.Owner = string(v)
			case fieldSymbol:
				r.Symbol = string(v)
			case fieldPrice:
				r.Price, err = decimal.NewFromString(string(v))
			}
			if err != nil {
				return Report{}, errors.Wrapf(ErrMalformed, "field %d: %v", num, err)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Report{}, errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendUUID(b []byte, num protowire.Number, id uuid.UUID) []byte {
	if id == uuid.Nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, id[:])
}
