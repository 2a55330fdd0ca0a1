package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lithe-dev/lithe/pkg/protocol"
	"github.com/lithe-dev/lithe/pkg/server"
)

// Default tracer name for lithe applications.
const defaultTracerName = "lithe"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "lithe").
	TracerName string

	// IncludeSessionID includes the session ID in span attributes.
	// Enabled by default.
	IncludeSessionID bool

	// Filter determines which batches to trace. Return true to trace.
	// If nil, all batches are traced.
	Filter func(sessionID string, batch *protocol.SetFrame) bool

	// AttributeExtractor adds custom attributes per batch.
	AttributeExtractor func(sessionID string, batch *protocol.SetFrame) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeSessionID enables/disables the session ID attribute.
func WithIncludeSessionID(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeSessionID = include
	}
}

// WithBatchFilter sets a filter function for batches.
func WithBatchFilter(filter func(sessionID string, batch *protocol.SetFrame) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(sessionID string, batch *protocol.SetFrame) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:       defaultTracerName,
		IncludeSessionID: true,
	}
}

// OpenTelemetry creates middleware that opens one span per applied
// write batch.
//
// The span records the write count, the session ID, the resulting
// update sequence, and any rejection error. The tracer comes from the
// global provider; configure it in main() before serving:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) server.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return func(next server.ApplyFunc) server.ApplyFunc {
		return func(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
			if config.Filter != nil && !config.Filter(sessionID, batch) {
				return next(ctx, sessionID, batch)
			}

			attrs := []attribute.KeyValue{
				attribute.Int("lithe.write_count", len(batch.Writes)),
			}
			if config.IncludeSessionID {
				attrs = append(attrs, attribute.String("lithe.session_id", sessionID))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(sessionID, batch)...)
			}

			spanCtx, span := config.tracer.Start(
				ctx,
				"lithe.apply",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			frame, err := next(spanCtx, sessionID, batch)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return frame, err
			}

			span.SetStatus(codes.Ok, "")
			if frame != nil {
				span.SetAttributes(
					attribute.Int64("lithe.seq", int64(frame.Seq)),
					attribute.Int("lithe.change_count", len(frame.Changes)),
				)
			}
			return frame, nil
		}
	}
}
