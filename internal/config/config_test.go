package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lithe-dev/lithe/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := writeConfig(t, `{"name": "demo"}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Name != "demo" {
		t.Errorf("expected name demo, got %q", cfg.Name)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != "60s" {
		t.Errorf("expected default read timeout 60s, got %q", cfg.Server.ReadTimeout)
	}
	if cfg.Telemetry.ServiceName != "demo" {
		t.Errorf("expected service name to default to app name, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, "E301") {
		t.Errorf("expected E301, got %v", err)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := writeConfig(t, `{"name": `)
	_, err := Load(dir)
	if !errors.Is(err, "E101") {
		t.Errorf("expected E101, got %v", err)
	}
}

func TestLoadFullConfig(t *testing.T) {
	dir := writeConfig(t, `{
		"name": "demo",
		"server": {
			"addr": ":9090",
			"allowedOrigins": ["https://example.com"],
			"readTimeout": "30s",
			"maxSessions": 50,
			"rateLimit": 10,
			"rateBurst": 20
		},
		"stores": [
			{"name": "counter", "initial": 0},
			{"name": "settings", "initial": {"theme": "dark"}}
		],
		"snapshot": {"backend": "sqlite", "path": "state.db", "checkpoint": "@every 1m"},
		"telemetry": {"metrics": true}
	}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.Server.Addr)
	}
	if len(cfg.Stores) != 2 || cfg.Stores[0].Name != "counter" {
		t.Fatalf("expected 2 stores starting with counter, got %v", cfg.Stores)
	}
	if string(cfg.Stores[1].Initial) != `{"theme": "dark"}` {
		t.Errorf("expected raw initial JSON preserved, got %s", cfg.Stores[1].Initial)
	}
	if cfg.Snapshot.Backend != BackendSQLite || cfg.Snapshot.Path != "state.db" {
		t.Errorf("expected sqlite/state.db, got %s/%s", cfg.Snapshot.Backend, cfg.Snapshot.Path)
	}
}

func TestEnvOverlay(t *testing.T) {
	dir := writeConfig(t, `{"server": {"addr": ":9090"}}`)
	t.Setenv("LITHE_ADDR", ":7070")
	t.Setenv("LITHE_SNAPSHOT_BACKEND", "redis")
	t.Setenv("LITHE_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("expected env to win, got %q", cfg.Server.Addr)
	}
	if cfg.Snapshot.Backend != BackendRedis || cfg.Snapshot.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis overlay, got %s/%s", cfg.Snapshot.Backend, cfg.Snapshot.RedisAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate failed: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LITHE_ADDR", ":6060")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env failed: %v", err)
	}
	if cfg.Server.Addr != ":6060" {
		t.Errorf("expected :6060, got %q", cfg.Server.Addr)
	}
}

func TestValidateBadDuration(t *testing.T) {
	cfg := New()
	cfg.Server.ReadTimeout = "soon"
	if err := cfg.Validate(); !errors.Is(err, "E102") {
		t.Errorf("expected E102, got %v", err)
	}
}

func TestValidateDuplicateStore(t *testing.T) {
	cfg := New()
	cfg.Stores = []StoreConfig{{Name: "a"}, {Name: "a"}}
	if err := cfg.Validate(); !errors.Is(err, "E102") {
		t.Errorf("expected E102, got %v", err)
	}
}

func TestValidateBadInitialValue(t *testing.T) {
	cfg := New()
	cfg.Stores = []StoreConfig{{Name: "a", Initial: []byte("{not json")}}
	if err := cfg.Validate(); !errors.Is(err, "E103") {
		t.Errorf("expected E103, got %v", err)
	}
}

func TestValidateUnsupportedBackend(t *testing.T) {
	cfg := New()
	cfg.Snapshot.Backend = "dynamo"
	if err := cfg.Validate(); !errors.Is(err, "E202") {
		t.Errorf("expected E202, got %v", err)
	}
}

func TestValidateBackendRequirements(t *testing.T) {
	cfg := New()
	cfg.Snapshot.Backend = BackendRedis
	cfg.Snapshot.RedisAddr = ""
	if err := cfg.Validate(); !errors.Is(err, "E102") {
		t.Errorf("expected E102 for missing redis addr, got %v", err)
	}

	cfg = New()
	cfg.Snapshot.Backend = BackendS3
	if err := cfg.Validate(); !errors.Is(err, "E102") {
		t.Errorf("expected E102 for missing s3 bucket, got %v", err)
	}
}

func TestBuildServerConfig(t *testing.T) {
	cfg := New()
	cfg.Server.Addr = ":9090"
	cfg.Server.ReadTimeout = "45s"
	cfg.Server.MaxSessions = 7
	cfg.Telemetry.Metrics = true

	sc, err := cfg.BuildServerConfig()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if sc.Addr != ":9090" {
		t.Errorf("expected :9090, got %q", sc.Addr)
	}
	if sc.ReadTimeout != 45*time.Second {
		t.Errorf("expected 45s, got %v", sc.ReadTimeout)
	}
	if sc.MaxSessions != 7 {
		t.Errorf("expected 7, got %d", sc.MaxSessions)
	}
	if !sc.EnableMetrics {
		t.Error("expected metrics enabled")
	}
}
