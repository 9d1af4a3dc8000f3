package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds the agent's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	Refreshes      *prometheus.CounterVec
	PushEvents     *prometheus.CounterVec
	StatusUpdates  *prometheus.CounterVec
	OrdersTracked  prometheus.Gauge
	RefreshLatency prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rider_sync_refreshes_total",
				Help: "Full refreshes by result (applied, stale, failed)",
			},
			[]string{"result"},
		),
		PushEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rider_sync_push_events_total",
				Help: "Push events handled by kind and result",
			},
			[]string{"kind", "result"},
		),
		StatusUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rider_sync_status_updates_total",
				Help: "Rider status submissions by result",
			},
			[]string{"result"},
		),
		OrdersTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rider_sync_orders",
				Help: "Orders currently held by the synchronizer",
			},
		),
		RefreshLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rider_sync_refresh_duration_seconds",
				Help:    "Latency of the rider orders fetch",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
	}

	r.reg.MustRegister(
		r.Refreshes,
		r.PushEvents,
		r.StatusUpdates,
		r.OrdersTracked,
		r.RefreshLatency,
		collectors.NewGoCollector(),
	)
	return r
}

// Gatherer exposes the registry to an HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
