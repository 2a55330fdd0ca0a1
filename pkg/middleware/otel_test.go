package middleware

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/protocol"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func findAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetrySpanPerBatch(t *testing.T) {
	recorder := setupRecorder(t)

	apply := OpenTelemetry(
		WithAttributeExtractor(func(sessionID string, batch *protocol.SetFrame) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)(okApply)

	if _, err := apply(context.Background(), "sess-1", testBatch(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "lithe.apply" {
		t.Errorf("expected span name lithe.apply, got %s", span.Name())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", span.Status().Code)
	}
	if v, ok := findAttr(span, "lithe.write_count"); !ok || v.AsInt64() != 2 {
		t.Errorf("expected write_count 2, got %v", v)
	}
	if v, ok := findAttr(span, "lithe.session_id"); !ok || v.AsString() != "sess-1" {
		t.Errorf("expected session_id sess-1, got %v", v)
	}
	if v, ok := findAttr(span, "lithe.seq"); !ok || v.AsInt64() != 1 {
		t.Errorf("expected seq 1, got %v", v)
	}
	if v, ok := findAttr(span, "test.attr"); !ok || v.AsString() != "ok" {
		t.Errorf("expected custom attribute, got %v", v)
	}
}

func TestOpenTelemetryRecordsError(t *testing.T) {
	recorder := setupRecorder(t)

	failing := func(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
		return nil, errors.New("E007")
	}
	apply := OpenTelemetry()(failing)

	if _, err := apply(context.Background(), "sess-1", testBatch(1)); !errors.Is(err, "E007") {
		t.Fatalf("expected E007 to propagate, got %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected Error status, got %v", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestOpenTelemetryFilterSkipsSpan(t *testing.T) {
	recorder := setupRecorder(t)

	apply := OpenTelemetry(
		WithBatchFilter(func(sessionID string, batch *protocol.SetFrame) bool {
			return sessionID != "noisy"
		}),
	)(okApply)

	if _, err := apply(context.Background(), "noisy", testBatch(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorder.Ended()) != 0 {
		t.Errorf("expected no spans for filtered session, got %d", len(recorder.Ended()))
	}

	if _, err := apply(context.Background(), "sess-1", testBatch(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorder.Ended()) != 1 {
		t.Errorf("expected 1 span, got %d", len(recorder.Ended()))
	}
}

func TestOpenTelemetryDisableSessionID(t *testing.T) {
	recorder := setupRecorder(t)

	apply := OpenTelemetry(WithIncludeSessionID(false))(okApply)
	if _, err := apply(context.Background(), "sess-1", testBatch(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if _, ok := findAttr(spans[0], "lithe.session_id"); ok {
		t.Error("expected session_id attribute to be omitted")
	}
}
