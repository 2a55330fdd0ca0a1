package server

import "time"

// Config holds the server's tunables. Zero values fall back to the
// defaults below.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// AllowedOrigins restricts WebSocket upgrades. Empty allows
	// same-origin only; "*" allows any origin.
	AllowedOrigins []string

	// TrustProxyHeaders enables client IP extraction from
	// X-Forwarded-For. Enable only behind a trusted reverse proxy.
	TrustProxyHeaders bool

	// ReadTimeout bounds how long a read may block without traffic.
	ReadTimeout time.Duration

	// WriteTimeout bounds each outbound frame write.
	WriteTimeout time.Duration

	// PingInterval is how often the server pings idle connections.
	// Must be shorter than ReadTimeout.
	PingInterval time.Duration

	// MaxSessions caps concurrent sessions (0 = unlimited).
	MaxSessions int

	// MaxSessionsPerIP caps sessions per client IP (0 = unlimited).
	MaxSessionsPerIP int

	// MaxDetachedSessions caps how many disconnected sessions are kept
	// resumable before LRU eviction.
	MaxDetachedSessions int

	// ResumeWindow is how long a detached session stays resumable.
	ResumeWindow time.Duration

	// RateLimit is the sustained inbound set-frames-per-second allowed
	// per session; RateBurst is the burst size.
	RateLimit float64
	RateBurst int

	// HistorySize is how many update frames are retained for resync.
	HistorySize int

	// SendQueueSize is the per-session outbound frame queue length.
	SendQueueSize int

	// EnableMetrics exposes GET /metrics.
	EnableMetrics bool
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:                ":8080",
		ReadTimeout:         60 * time.Second,
		WriteTimeout:        10 * time.Second,
		PingInterval:        30 * time.Second,
		MaxSessions:         10000,
		MaxDetachedSessions: 1000,
		ResumeWindow:        5 * time.Minute,
		RateLimit:           100,
		RateBurst:           200,
		HistorySize:         256,
		SendQueueSize:       64,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	def := DefaultConfig()
	out := *c
	if out.Addr == "" {
		out.Addr = def.Addr
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = def.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.PingInterval == 0 {
		out.PingInterval = def.PingInterval
	}
	if out.MaxDetachedSessions == 0 {
		out.MaxDetachedSessions = def.MaxDetachedSessions
	}
	if out.ResumeWindow == 0 {
		out.ResumeWindow = def.ResumeWindow
	}
	if out.RateLimit == 0 {
		out.RateLimit = def.RateLimit
	}
	if out.RateBurst == 0 {
		out.RateBurst = def.RateBurst
	}
	if out.HistorySize == 0 {
		out.HistorySize = def.HistorySize
	}
	if out.SendQueueSize == 0 {
		out.SendQueueSize = def.SendQueueSize
	}
	return &out
}
