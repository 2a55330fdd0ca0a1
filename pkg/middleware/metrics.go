package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	litheerrors "github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/protocol"
	"github.com/lithe-dev/lithe/pkg/server"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "lithe").
	Namespace string

	// Subsystem is the metrics subsystem (default: "apply").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for apply duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "lithe",
		Subsystem: "apply",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type applyMetrics struct {
	batchesTotal  *prometheus.CounterVec
	batchDuration prometheus.Histogram
	writesTotal   prometheus.Counter
	errorsTotal   *prometheus.CounterVec
}

func initMetrics(config MetricsConfig) *applyMetrics {
	factory := promauto.With(config.Registry)

	return &applyMetrics{
		batchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batches_total",
			Help:        "Write batches applied, by status.",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_duration_seconds",
			Help:        "Time to apply a write batch.",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		writesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Individual store writes carried by applied batches.",
			ConstLabels: config.ConstLabels,
		}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Rejected batches, by error code.",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),
	}
}

// Prometheus creates middleware that records counters and a duration
// histogram for every applied write batch.
//
// Metrics collected:
//   - lithe_apply_batches_total{status}: batches by success/error
//   - lithe_apply_batch_duration_seconds: apply latency
//   - lithe_apply_writes_total: store writes carried by batches
//   - lithe_apply_errors_total{code}: rejections by error code
func Prometheus(opts ...MetricsOption) server.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := initMetrics(config)

	return func(next server.ApplyFunc) server.ApplyFunc {
		return func(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
			start := time.Now()
			frame, err := next(ctx, sessionID, batch)
			m.batchDuration.Observe(time.Since(start).Seconds())

			if err != nil {
				m.batchesTotal.WithLabelValues("error").Inc()
				m.errorsTotal.WithLabelValues(errorCode(err)).Inc()
				return frame, err
			}
			m.batchesTotal.WithLabelValues("success").Inc()
			m.writesTotal.Add(float64(len(batch.Writes)))
			return frame, nil
		}
	}
}

// errorCode keeps the error label low-cardinality.
func errorCode(err error) string {
	if le := litheerrors.AsLitheError(err); le != nil {
		return le.Code
	}
	return "unknown"
}
