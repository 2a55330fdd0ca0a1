package server

import (
	"log/slog"
	"testing"
	"time"
)

func testManager(config *Config) *Manager {
	return NewManager(config.withDefaults(), nil, slog.Default())
}

func testSession(id, ip string, stores ...string) *Session {
	s := &Session{
		ID:     id,
		IP:     ip,
		done:   make(chan struct{}),
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	if len(stores) > 0 {
		s.stores = make(map[string]struct{}, len(stores))
		for _, name := range stores {
			s.stores[name] = struct{}{}
		}
	}
	return s
}

func TestManagerAddRemove(t *testing.T) {
	m := testManager(DefaultConfig())

	s := testSession("s1", "10.0.0.1")
	if err := m.Add(s); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 session, got %d", m.Count())
	}
	if got, ok := m.Get("s1"); !ok || got != s {
		t.Error("expected to find s1")
	}

	m.Remove(s)
	if m.Count() != 0 {
		t.Errorf("expected 0 sessions, got %d", m.Count())
	}
	if _, ok := m.Get("s1"); ok {
		t.Error("expected s1 gone after remove")
	}
	if m.DetachedCount() != 1 {
		t.Errorf("expected 1 detached session, got %d", m.DetachedCount())
	}
}

func TestManagerMaxSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessions = 2
	m := testManager(cfg)

	m.Add(testSession("s1", ""))
	m.Add(testSession("s2", ""))
	if err := m.Add(testSession("s3", "")); err != ErrMaxSessionsReached {
		t.Errorf("expected ErrMaxSessionsReached, got %v", err)
	}
}

func TestManagerMaxSessionsPerIP(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessionsPerIP = 1
	m := testManager(cfg)

	m.Add(testSession("s1", "10.0.0.1"))
	if err := m.Add(testSession("s2", "10.0.0.1")); err != ErrTooManySessionsFromIP {
		t.Errorf("expected ErrTooManySessionsFromIP, got %v", err)
	}
	if err := m.Add(testSession("s3", "10.0.0.2")); err != nil {
		t.Errorf("expected other IP to be admitted, got %v", err)
	}

	// Removing frees the slot.
	s1, _ := m.Get("s1")
	m.Remove(s1)
	if err := m.Add(testSession("s4", "10.0.0.1")); err != nil {
		t.Errorf("expected slot freed after remove, got %v", err)
	}
}

func TestManagerResume(t *testing.T) {
	m := testManager(DefaultConfig())

	s := testSession("s1", "10.0.0.1", "counter")
	m.Add(s)
	m.Remove(s)

	d, ok := m.Resume("s1")
	if !ok {
		t.Fatal("expected resume to succeed")
	}
	if d.id != "s1" || d.ip != "10.0.0.1" {
		t.Errorf("expected s1/10.0.0.1, got %s/%s", d.id, d.ip)
	}
	if len(d.stores) != 1 || d.stores[0] != "counter" {
		t.Errorf("expected stores [counter], got %v", d.stores)
	}

	// Resume is one-shot.
	if _, ok := m.Resume("s1"); ok {
		t.Error("expected second resume to fail")
	}
}

func TestManagerResumeUnknown(t *testing.T) {
	m := testManager(DefaultConfig())
	if _, ok := m.Resume("nope"); ok {
		t.Error("expected resume of unknown ID to fail")
	}
}

func TestManagerResumeWindowExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResumeWindow = time.Millisecond
	m := testManager(cfg)

	s := testSession("s1", "")
	m.Add(s)
	m.Remove(s)

	time.Sleep(5 * time.Millisecond)
	if _, ok := m.Resume("s1"); ok {
		t.Error("expected resume to fail after the window passed")
	}
}

func TestManagerDetachedEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDetachedSessions = 2
	m := testManager(cfg)

	for _, id := range []string{"s1", "s2", "s3"} {
		s := testSession(id, "")
		m.Add(s)
		m.Remove(s)
	}

	if m.DetachedCount() != 2 {
		t.Errorf("expected 2 detached sessions, got %d", m.DetachedCount())
	}
	// Oldest was evicted.
	if _, ok := m.Resume("s1"); ok {
		t.Error("expected s1 evicted")
	}
	if _, ok := m.Resume("s3"); !ok {
		t.Error("expected s3 resumable")
	}
}

func TestManagerStats(t *testing.T) {
	m := testManager(DefaultConfig())
	m.Add(testSession("s1", "10.0.0.1"))
	m.Add(testSession("s2", "10.0.0.2"))

	stats := m.Stats()
	if stats.ActiveSessions != 2 {
		t.Errorf("expected 2 active, got %d", stats.ActiveSessions)
	}
	if stats.UniqueIPs != 2 {
		t.Errorf("expected 2 IPs, got %d", stats.UniqueIPs)
	}
}
