package server

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// detachedSession is what survives a disconnect: enough identity to
// resume within the resume window.
type detachedSession struct {
	id         string
	ip         string
	stores     []string
	lastSent   uint64
	lastAck    uint64
	detachedAt time.Time
}

// Manager tracks connected sessions, enforces the session caps, and
// keeps recently disconnected sessions resumable.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	perIP    map[string]int
	detached *lru.Cache[string, *detachedSession]

	config  *Config
	metrics *Metrics
	logger  *slog.Logger
}

// NewManager creates a session manager.
func NewManager(config *Config, metrics *Metrics, logger *slog.Logger) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		perIP:    make(map[string]int),
		config:   config,
		metrics:  metrics,
		logger:   logger.With("component", "manager"),
	}

	capacity := config.MaxDetachedSessions
	if capacity <= 0 {
		capacity = 1000
	}
	m.detached, _ = lru.NewWithEvict(capacity, func(id string, _ *detachedSession) {
		m.logger.Debug("detached session evicted", "session_id", id)
		if m.metrics != nil {
			m.metrics.DetachedSessions.Dec()
		}
	})

	return m
}

// Add registers a connected session, enforcing the global and per-IP
// caps.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return ErrMaxSessionsReached
	}
	if m.config.MaxSessionsPerIP > 0 && s.IP != "" && m.perIP[s.IP] >= m.config.MaxSessionsPerIP {
		return ErrTooManySessionsFromIP
	}

	m.sessions[s.ID] = s
	if s.IP != "" {
		m.perIP[s.IP]++
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}
	return nil
}

// Remove detaches a session on disconnect. The session stays resumable
// until the resume window passes or the detached cache evicts it.
func (m *Manager) Remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		return
	}
	delete(m.sessions, s.ID)
	if s.IP != "" {
		if m.perIP[s.IP]--; m.perIP[s.IP] <= 0 {
			delete(m.perIP, s.IP)
		}
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}

	m.detached.Add(s.ID, &detachedSession{
		id:         s.ID,
		ip:         s.IP,
		stores:     s.StoreNames(),
		lastSent:   s.lastSent.Load(),
		lastAck:    s.lastAck.Load(),
		detachedAt: time.Now(),
	})
	if m.metrics != nil {
		m.metrics.DetachedSessions.Inc()
	}
	m.logger.Debug("session detached", "session_id", s.ID)
}

// Resume claims a detached session by ID. It returns false when the
// ID is unknown or the resume window has passed.
func (m *Manager) Resume(id string) (*detachedSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.detached.Get(id)
	if !ok {
		return nil, false
	}
	m.detached.Remove(id)

	if m.config.ResumeWindow > 0 && time.Since(d.detachedAt) > m.config.ResumeWindow {
		m.logger.Debug("resume window expired", "session_id", id)
		return nil, false
	}
	return d, true
}

// Get returns a connected session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of connected sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// DetachedCount returns the number of resumable detached sessions.
func (m *Manager) DetachedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detached.Len()
}

// CloseAll closes every connected session, e.g. during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// ManagerStats summarizes the manager's state.
type ManagerStats struct {
	ActiveSessions   int
	DetachedSessions int
	UniqueIPs        int
}

// Stats returns a point-in-time summary.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		ActiveSessions:   len(m.sessions),
		DetachedSessions: m.detached.Len(),
		UniqueIPs:        len(m.perIP),
	}
}
