package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/engine"
	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/metrics"
	"matchbook/infra/sequence"
)

// ReportSink stores encoded execution reports keyed by report sequence.
// *outbox.Outbox satisfies it.
type ReportSink interface {
	Put(seq uint64, payload []byte) error
	LastSeq() (uint64, error)
}

type OrderService struct {
	mu      sync.Mutex
	engine  *engine.Engine
	sink    ReportSink
	seq     *sequence.Sequencer
	log     *zap.Logger
	metrics *metrics.Engine
	now     func() time.Time
}

// NewOrderService wires the engine to its report sink. sink may be nil, in
// which case no reports are recorded. Report sequences continue after the
// highest one already in the sink.
func NewOrderService(
	e *engine.Engine,
	sink ReportSink,
	log *zap.Logger,
	m *metrics.Engine,
) (*OrderService, error) {
	var last uint64
	if sink != nil {
		var err error
		if last, err = sink.LastSeq(); err != nil {
			return nil, err
		}
	}
	return &OrderService{
		engine:  e,
		sink:    sink,
		seq:     sequence.New(last),
		log:     log,
		metrics: m,
		now:     time.Now,
	}, nil
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) PlaceOrder(
	owner, symbol string,
	price decimal.Decimal,
	volume int64,
	side orderbook.Side,
	tif orderbook.TimeInForce,
) (engine.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.engine.PlaceOrder(owner, symbol, price, volume, side, tif)
	if err != nil {
		s.metrics.Orders.WithLabelValues(tif.String(), "invalid").Inc()
		s.log.Warn("order_invalid",
			zap.String("owner", owner),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return engine.Outcome{}, err
	}

	s.metrics.Orders.WithLabelValues(tif.String(), out.Status.String()).Inc()
	s.metrics.Fills.Add(float64(len(out.Fills)))
	s.metrics.FilledVolume.Add(float64(out.FilledVolume()))
	s.metrics.Resting.Set(float64(s.engine.RestingCount()))

	s.log.Info("order_placed",
		zap.Stringer("order_id", out.OrderID),
		zap.String("owner", owner),
		zap.String("symbol", symbol),
		zap.Stringer("side", side),
		zap.Stringer("tif", tif),
		zap.String("price", price.String()),
		zap.Int64("volume", volume),
		zap.Stringer("status", out.Status),
		zap.Int("fills", len(out.Fills)),
		zap.Int64("remaining", out.Remaining),
	)

	s.record(codec.FromOutcome(out, s.now()))
	return out, nil
}

// CancelOrder removes a resting order. It returns false when id is not
// resting.
func (s *OrderService) CancelOrder(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, ok := s.engine.Resting(id)
	if !ok || !s.engine.CancelOrder(id) {
		s.metrics.Cancels.WithLabelValues("not_found").Inc()
		s.log.Debug("cancel_not_found", zap.Stringer("order_id", id))
		return false
	}

	s.metrics.Cancels.WithLabelValues("cancelled").Inc()
	s.metrics.Resting.Set(float64(s.engine.RestingCount()))
	s.log.Info("order_cancelled",
		zap.Stringer("order_id", id),
		zap.String("symbol", view.Symbol),
		zap.Int64("remaining", view.Volume),
	)

	s.record([]codec.Report{codec.Cancelled(view, s.now())})
	return true
}

// record writes reports to the sink. A failed write is logged and counted;
// the match it describes stands.
func (s *OrderService) record(reports []codec.Report) {
	if s.sink == nil {
		return
	}
	for _, r := range reports {
		r.Seq = s.seq.Next()
		if err := s.sink.Put(r.Seq, codec.Encode(r)); err != nil {
			s.metrics.OutboxErrors.Inc()
			s.log.Error("outbox_write_failed",
				zap.Uint64("seq", r.Seq),
				zap.Stringer("kind", r.Kind),
				zap.Stringer("order_id", r.OrderID),
				zap.Error(err),
			)
		}
	}
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) QuotePrice(symbol string, side orderbook.Side) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.QuotePrice(symbol, side)
}

func (s *OrderService) VolumeAtPrice(symbol string, side orderbook.Side, price decimal.Decimal) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.VolumeAtPrice(symbol, side, price)
}

func (s *OrderService) TotalVolume(symbol string, side orderbook.Side) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.TotalVolume(symbol, side)
}

func (s *OrderService) Resting(id uuid.UUID) (orderbook.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Resting(id)
}

// Snapshot returns both sides of symbol, best level first. The result is a
// copy and stays valid after further commands.
func (s *OrderService) Snapshot(symbol string) engine.BookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot(symbol)
}

func (s *OrderService) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Symbols()
}

func (s *OrderService) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CheckInvariants()
}
