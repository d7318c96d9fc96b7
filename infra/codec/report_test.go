package codec

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/engine"
	"matchbook/domain/orderbook"
)

func TestEncodeDecodeFill(t *testing.T) {
	in := Report{
		Seq:            42,
		Kind:           KindFill,
		OrderID:        uuid.Must(uuid.NewV7()),
		Owner:          "buyer",
		Symbol:         "TSLA",
		Side:           orderbook.Buy,
		Price:          decimal.RequireFromString("700.25"),
		Volume:         150,
		CounterpartyID: uuid.Must(uuid.NewV7()),
		TimeUnixNano:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano(),
	}

	out, err := Decode(Encode(in))
	require.NoError(t, err)
	assert.True(t, in.Price.Equal(out.Price))
	out.Price = in.Price
	assert.Equal(t, in, out)
}

func TestEncodeOmitsZeroFields(t *testing.T) {
	b := Encode(Report{Seq: 1, Kind: KindRejected})
	// two single-byte tags, two single-byte varints
	assert.Len(t, b, 4)

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, out.OrderID)
	assert.Equal(t, uuid.Nil, out.CounterpartyID)
	assert.True(t, out.Price.IsZero())
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := Encode(Report{Seq: 7, Kind: KindCancelled, Symbol: "X"})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), out.Seq)
	assert.Equal(t, "X", out.Symbol)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	wrongType := protowire.AppendTag(nil, fieldSeq, protowire.BytesType)
	wrongType = protowire.AppendString(wrongType, "x")

	badID := protowire.AppendTag(nil, fieldOrderID, protowire.BytesType)
	badID = protowire.AppendBytes(badID, []byte{1, 2, 3})

	badPrice := protowire.AppendTag(nil, fieldPrice, protowire.BytesType)
	badPrice = protowire.AppendString(badPrice, "seven")

	cases := map[string][]byte{
		"truncated tag":   {0x80},
		"truncated value": {0x08},
		"wrong wire type": wrongType,
		"short uuid":      badID,
		"bad price":       badPrice,
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(b)
			assert.Error(t, err)
		})
	}
}

func TestFromOutcome(t *testing.T) {
	e := engine.New()
	_, err := e.PlaceOrder("s1", "TSLA", decimal.NewFromInt(700), 100, orderbook.Sell, orderbook.GoodTilCancel)
	require.NoError(t, err)
	_, err = e.PlaceOrder("s2", "TSLA", decimal.NewFromInt(701), 100, orderbook.Sell, orderbook.GoodTilCancel)
	require.NoError(t, err)

	out, err := e.PlaceOrder("b", "TSLA", decimal.NewFromInt(702), 250, orderbook.Buy, orderbook.GoodTilCancel)
	require.NoError(t, err)
	require.Equal(t, engine.Resting, out.Status)

	at := time.Unix(100, 0)
	reports := FromOutcome(out, at)
	require.Len(t, reports, 3)

	assert.Equal(t, KindFill, reports[0].Kind)
	assert.Equal(t, out.OrderID, reports[0].OrderID)
	assert.Equal(t, out.Fills[0].MakerOrderID, reports[0].CounterpartyID)
	assert.True(t, decimal.NewFromInt(700).Equal(reports[0].Price))
	assert.Equal(t, int64(100), reports[0].Volume)
	assert.True(t, decimal.NewFromInt(701).Equal(reports[1].Price))

	last := reports[2]
	assert.Equal(t, KindResting, last.Kind)
	assert.Equal(t, int64(50), last.Volume)
	assert.Equal(t, at.UnixNano(), last.TimeUnixNano)
}

func TestFromOutcomeRejected(t *testing.T) {
	e := engine.New()
	out, err := e.PlaceOrder("b", "TSLA", decimal.NewFromInt(700), 10, orderbook.Buy, orderbook.FillOrKill)
	require.NoError(t, err)

	reports := FromOutcome(out, time.Now())
	require.Len(t, reports, 1)
	assert.Equal(t, KindRejected, reports[0].Kind)
	assert.Equal(t, int64(10), reports[0].Volume)
	assert.Equal(t, "b", reports[0].Owner)
}
