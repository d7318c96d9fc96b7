package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Engine holds the collectors the order service updates.
type Engine struct {
	Orders        *prometheus.CounterVec
	Fills         prometheus.Counter
	FilledVolume  prometheus.Counter
	Cancels       *prometheus.CounterVec
	Resting       prometheus.Gauge
	OutboxErrors  prometheus.Counter
	Published     prometheus.Counter
	PublishErrors prometheus.Counter
}

// NewEngine creates the collectors and registers them on reg.
func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "orders_total",
			Help:      "Orders placed, by time in force and outcome.",
		}, []string{"tif", "outcome"}),
		Fills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "fills_total",
			Help:      "Executions between an incoming and a resting order.",
		}),
		FilledVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "filled_volume_total",
			Help:      "Volume executed across all fills.",
		}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "cancels_total",
			Help:      "Cancel requests, by result.",
		}, []string{"result"}),
		Resting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matchbook",
			Name:      "resting_orders",
			Help:      "Orders currently resting on the book.",
		}),
		OutboxErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "outbox_errors_total",
			Help:      "Execution reports that could not be written to the outbox.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "reports_published_total",
			Help:      "Execution reports acknowledged by the broker.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "report_publish_errors_total",
			Help:      "Failed publish attempts.",
		}),
	}
	reg.MustRegister(
		m.Orders,
		m.Fills,
		m.FilledVolume,
		m.Cancels,
		m.Resting,
		m.OutboxErrors,
		m.Published,
		m.PublishErrors,
	)
	return m
}
