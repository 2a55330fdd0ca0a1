package middleware

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/protocol"
	"github.com/lithe-dev/lithe/pkg/server"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue metric
				}
			}
			if m.Counter != nil {
				return m.GetCounter().GetValue()
			}
			if m.Histogram != nil {
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == key && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func okApply(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
	return &protocol.UpdateFrame{Seq: 1}, nil
}

func testBatch(n int) *protocol.SetFrame {
	sf := &protocol.SetFrame{}
	for i := 0; i < n; i++ {
		sf.Writes = append(sf.Writes, protocol.Write{Store: "counter", Value: []byte("1")})
	}
	return sf
}

func TestPrometheusRecordsSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	apply := Prometheus(WithRegistry(reg))(okApply)

	if _, err := apply(context.Background(), "s1", testBatch(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := apply(context.Background(), "s1", testBatch(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := gatherValue(t, reg, "lithe_apply_batches_total", map[string]string{"status": "success"}); got != 2 {
		t.Errorf("expected 2 successful batches, got %v", got)
	}
	if got := gatherValue(t, reg, "lithe_apply_writes_total", nil); got != 5 {
		t.Errorf("expected 5 writes, got %v", got)
	}
	if got := gatherValue(t, reg, "lithe_apply_batch_duration_seconds", nil); got != 2 {
		t.Errorf("expected 2 duration samples, got %v", got)
	}
}

func TestPrometheusRecordsErrorByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	failing := func(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
		return nil, errors.New("E003").WithDetail("no store named %q", "missing")
	}
	apply := Prometheus(WithRegistry(reg))(failing)

	if _, err := apply(context.Background(), "s1", testBatch(1)); !errors.Is(err, "E003") {
		t.Fatalf("expected E003 to propagate, got %v", err)
	}

	if got := gatherValue(t, reg, "lithe_apply_batches_total", map[string]string{"status": "error"}); got != 1 {
		t.Errorf("expected 1 errored batch, got %v", got)
	}
	if got := gatherValue(t, reg, "lithe_apply_errors_total", map[string]string{"code": "E003"}); got != 1 {
		t.Errorf("expected 1 E003 rejection, got %v", got)
	}
	// Rejected writes are not counted.
	if got := gatherValue(t, reg, "lithe_apply_writes_total", nil); got != 0 {
		t.Errorf("expected 0 writes, got %v", got)
	}
}

func TestPrometheusNamespaceOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	apply := Prometheus(
		WithRegistry(reg),
		WithNamespace("myapp"),
		WithSubsystem("sync"),
		WithConstLabels(prometheus.Labels{"instance": "a"}),
		WithBuckets([]float64{0.1, 1}),
	)(okApply)

	if _, err := apply(context.Background(), "s1", testBatch(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := gatherValue(t, reg, "myapp_sync_batches_total", map[string]string{"status": "success", "instance": "a"}); got != 1 {
		t.Errorf("expected renamed metric with const label, got %v", got)
	}
}

func TestPrometheusOnHub(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := server.NewHub()
	hub.Use(Prometheus(WithRegistry(reg)))

	// No stores registered: the batch is rejected through the chain.
	_, err := hub.Apply(context.Background(), "s1", testBatch(1))
	if !errors.Is(err, "E003") {
		t.Fatalf("expected E003, got %v", err)
	}
	if got := gatherValue(t, reg, "lithe_apply_batches_total", map[string]string{"status": "error"}); got != 1 {
		t.Errorf("expected 1 errored batch, got %v", got)
	}
}
