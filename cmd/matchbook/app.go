package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"matchbook/config"
	"matchbook/domain/engine"
	"matchbook/infra/kafka"
	mblog "matchbook/infra/log"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
	"matchbook/jobs/broadcaster"
	"matchbook/service"
)

// app holds everything a subcommand needs, wired from config.
type app struct {
	log     *zap.Logger
	svc     *service.OrderService
	outbox  *outbox.Outbox
	bc      *broadcaster.Broadcaster
	metrics *http.Server

	cancel context.CancelFunc
	jobs   *errgroup.Group
}

func newAppFromFlags(cmd *cobra.Command) (*app, error) {
	path, err := cmd.Flags().GetString(configFlagName)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newApp(cfg config.Config) (*app, error) {
	logger, err := mblog.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	a := &app{log: logger}

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewEngine(reg)
	if cfg.Metrics.Addr != "" {
		a.metrics = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// ---------------- Outbox ----------------

	var sink service.ReportSink
	if cfg.Outbox.Enabled {
		ob, err := outbox.Open(cfg.Outbox.Dir)
		if err != nil {
			return nil, err
		}
		a.outbox = ob
		sink = ob
	}

	// ---------------- Broker ----------------

	if len(cfg.Broker.Brokers) > 0 {
		pub, err := newPublisher(cfg.Broker)
		if err != nil {
			a.close()
			return nil, err
		}
		a.bc = broadcaster.New(a.outbox, pub, broadcaster.Config{
			PollInterval: cfg.Broker.PollInterval,
			MaxRetries:   cfg.Broker.MaxRetries,
		}, logger.Named("broadcaster"), m)
	}

	// ---------------- Service ----------------

	eng := engine.New(engine.WithInvariantChecks(cfg.Engine.InvariantChecks))
	svc, err := service.NewOrderService(eng, sink, logger.Named("service"), m)
	if err != nil {
		a.close()
		return nil, err
	}
	a.svc = svc

	logger.Info("matchbook_ready",
		zap.Bool("outbox", cfg.Outbox.Enabled),
		zap.Strings("brokers", cfg.Broker.Brokers),
		zap.String("metrics_addr", cfg.Metrics.Addr),
		zap.Bool("invariant_checks", cfg.Engine.InvariantChecks),
	)
	return a, nil
}

func newPublisher(cfg config.Broker) (broadcaster.Publisher, error) {
	switch cfg.Client {
	case "sarama":
		p, err := kafka.NewSyncProducer(cfg.Brokers, cfg.Topic, cfg.ClientRetries)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "kafka-go":
		return kafka.NewProducer(cfg.Brokers, cfg.Topic, cfg.ClientRetries), nil
	default:
		return nil, errors.Errorf("unknown broker client %q", cfg.Client)
	}
}

// start launches the background jobs: the metrics listener and the
// broadcaster.
func (a *app) start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.jobs, ctx = errgroup.WithContext(ctx)

	if a.metrics != nil {
		srv := a.metrics
		a.jobs.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		a.jobs.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
	}

	if a.bc != nil {
		a.jobs.Go(func() error {
			return a.bc.Run(ctx)
		})
	}
}

// stop shuts the background jobs down, then drains the outbox once more.
func (a *app) stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.jobs != nil {
		if err := a.jobs.Wait(); err != nil {
			a.log.Error("background_job_failed", zap.Error(err))
		}
	}

	if a.bc != nil {
		if err := a.bc.Flush(ctx); err != nil {
			a.log.Error("final_flush_failed", zap.Error(err))
		}
	}
	a.close()
}

func (a *app) close() {
	if a.bc != nil {
		if err := a.bc.Close(); err != nil {
			a.log.Error("publisher_close_failed", zap.Error(err))
		}
	}
	if a.outbox != nil {
		if err := a.outbox.Close(); err != nil {
			a.log.Error("outbox_close_failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
