package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	SetsTotal        prometheus.Counter
	SetDuration      prometheus.Histogram
	UpdatesSent      prometheus.Counter
	UpdateBytes      prometheus.Counter
	ActiveSessions   prometheus.Gauge
	DetachedSessions prometheus.Gauge
	Resyncs          *prometheus.CounterVec // mode: replay|snapshot
	WebsocketErrors  *prometheus.CounterVec // type: read|write|decode
	RateLimited      prometheus.Counter
}

// NewMetrics registers the server collectors on reg. Pass a fresh
// registry in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SetsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lithe",
			Subsystem: "hub",
			Name:      "sets_total",
			Help:      "Store write batches applied.",
		}),
		SetDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lithe",
			Subsystem: "hub",
			Name:      "set_duration_seconds",
			Help:      "Time to apply a write batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		UpdatesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lithe",
			Subsystem: "hub",
			Name:      "updates_sent_total",
			Help:      "Update frames sent to sessions.",
		}),
		UpdateBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lithe",
			Subsystem: "hub",
			Name:      "update_bytes_total",
			Help:      "Bytes of update frames sent to sessions.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lithe",
			Subsystem: "server",
			Name:      "active_sessions",
			Help:      "Currently connected sessions.",
		}),
		DetachedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lithe",
			Subsystem: "server",
			Name:      "detached_sessions",
			Help:      "Disconnected sessions held for resume.",
		}),
		Resyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lithe",
			Subsystem: "server",
			Name:      "resyncs_total",
			Help:      "Resyncs served, by mode.",
		}, []string{"mode"}),
		WebsocketErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lithe",
			Subsystem: "server",
			Name:      "websocket_errors_total",
			Help:      "WebSocket failures, by type.",
		}, []string{"type"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lithe",
			Subsystem: "server",
			Name:      "rate_limited_frames_total",
			Help:      "Inbound set frames rejected by the rate limiter.",
		}),
	}
}
