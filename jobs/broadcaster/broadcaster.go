package broadcaster

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"matchbook/infra/codec"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
)

// Publisher delivers one encoded report to the broker and returns once it
// is acknowledged.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Config struct {
	PollInterval time.Duration
	MaxRetries   uint32
}

type Broadcaster struct {
	outbox    *outbox.Outbox
	publisher Publisher
	cfg       Config
	log       *zap.Logger
	metrics   *metrics.Engine
}

var errStopPass = errors.New("stop pass")

func New(
	ob *outbox.Outbox,
	pub Publisher,
	cfg Config,
	log *zap.Logger,
	m *metrics.Engine,
) *Broadcaster {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Broadcaster{
		outbox:    ob,
		publisher: pub,
		cfg:       cfg,
		log:       log,
		metrics:   m,
	}
}

// ------------------------------------------------
// RECOVERY
// ------------------------------------------------

// Recover returns reports left in SENT by an interrupted pass to NEW so
// they are published again. Consumers must tolerate duplicates by seq.
func (b *Broadcaster) Recover() error {
	recovered := 0
	err := b.outbox.ScanByState(outbox.StateSent, func(rec outbox.Record) error {
		recovered++
		return b.outbox.UpdateState(rec.Seq, outbox.StateNew, rec.Retries)
	})
	if err != nil {
		return errors.Wrap(err, "recover sent reports")
	}
	if recovered > 0 {
		b.log.Info("outbox_recovered", zap.Int("reports", recovered))
	}
	return nil
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run polls the outbox until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	if err := b.Recover(); err != nil {
		return err
	}
	b.log.Info("broadcaster_started", zap.Duration("poll_interval", b.cfg.PollInterval))

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcaster_stopped")
			return nil
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				b.log.Error("broadcast_pass_failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes NEW reports in sequence order. A publish failure ends
// the pass so later reports never overtake an earlier one; after
// MaxRetries failed attempts the report is parked as FAILED and skipped.
func (b *Broadcaster) Flush(ctx context.Context) error {
	err := b.outbox.ScanByState(outbox.StateNew, func(rec outbox.Record) error {
		if ctx.Err() != nil {
			return errStopPass
		}
		return b.publish(ctx, rec)
	})
	if errors.Is(err, errStopPass) {
		return nil
	}
	return err
}

func (b *Broadcaster) publish(ctx context.Context, rec outbox.Record) error {
	report, err := codec.Decode(rec.Payload)
	if err != nil {
		b.log.Error("report_undecodable", zap.Uint64("seq", rec.Seq), zap.Error(err))
		return b.outbox.UpdateState(rec.Seq, outbox.StateFailed, rec.Retries)
	}

	if err := b.outbox.UpdateState(rec.Seq, outbox.StateSent, rec.Retries); err != nil {
		return err
	}

	if err := b.publisher.Publish(ctx, []byte(report.Symbol), rec.Payload); err != nil {
		b.metrics.PublishErrors.Inc()
		retries := rec.Retries + 1
		if retries >= b.cfg.MaxRetries {
			b.log.Error("report_publish_abandoned",
				zap.Uint64("seq", rec.Seq),
				zap.Uint32("retries", retries),
				zap.Error(err),
			)
			if err := b.outbox.UpdateState(rec.Seq, outbox.StateFailed, retries); err != nil {
				return err
			}
			return nil
		}
		b.log.Warn("report_publish_failed",
			zap.Uint64("seq", rec.Seq),
			zap.Uint32("retries", retries),
			zap.Error(err),
		)
		if err := b.outbox.UpdateState(rec.Seq, outbox.StateNew, retries); err != nil {
			return err
		}
		return errStopPass
	}

	b.metrics.Published.Inc()
	b.log.Debug("report_published",
		zap.Uint64("seq", rec.Seq),
		zap.Stringer("kind", report.Kind),
		zap.String("symbol", report.Symbol),
	)
	return b.outbox.Delete(rec.Seq)
}

func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}
