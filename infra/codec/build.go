package codec

import (
	"time"

	"matchbook/domain/engine"
	"matchbook/domain/orderbook"
)

// FromOutcome turns one PlaceOrder result into reports: a KindFill per
// execution, in execution order, followed by the terminal report of the
// incoming order. Seq is left for the caller to assign.
func FromOutcome(out engine.Outcome, at time.Time) []Report {
	ts := at.UnixNano()
	reports := make([]Report, 0, len(out.Fills)+1)
	for _, f := range out.Fills {
		reports = append(reports, Report{
			Kind:           KindFill,
			OrderID:        f.TakerOrderID,
			Owner:          f.TakerOwner,
			Symbol:         f.Symbol,
			Side:           f.TakerSide,
			Price:          f.Price,
			Volume:         f.Volume,
			CounterpartyID: f.MakerOrderID,
			TimeUnixNano:   ts,
		})
	}

	final := Report{
		OrderID:      out.OrderID,
		Owner:        out.Order.Owner,
		Symbol:       out.Order.Symbol,
		Side:         out.Order.Side,
		Price:        out.Order.Price,
		Volume:       out.Order.Volume,
		TimeUnixNano: ts,
	}
	switch out.Status {
	case engine.Rejected:
		final.Kind = KindRejected
	case engine.FullyFilled:
		final.Kind = KindFilled
	case engine.Resting:
		final.Kind = KindResting
		final.Volume = out.Remaining
	}
	return append(reports, final)
}

// Cancelled reports a resting order taken off the book with its remaining
// volume.
func Cancelled(o orderbook.View, at time.Time) Report {
	return Report{
		Kind:         KindCancelled,
		OrderID:      o.ID,
		Owner:        o.Owner,
		Symbol:       o.Symbol,
		Side:         o.Side,
		Price:        o.Price,
		Volume:       o.Volume,
		TimeUnixNano: at.UnixNano(),
	}
}
