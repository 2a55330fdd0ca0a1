package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "lithe.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
)

// Backend names accepted by the snapshot section.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendS3     = "s3"
)

// Config represents the complete lithe.json configuration.
type Config struct {
	// Name is the application name, used as the telemetry service name
	// when none is set.
	Name string `json:"name,omitempty" env:"LITHE_NAME"`

	// Server contains the sync server settings.
	Server ServerConfig `json:"server,omitempty"`

	// Stores declares the stores registered at startup.
	Stores []StoreConfig `json:"stores,omitempty"`

	// Snapshot configures state persistence.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	// Debug enables verbose logging.
	Debug bool `json:"debug,omitempty" env:"LITHE_DEBUG"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// ServerConfig contains the sync server settings. Durations are
// strings like "30s".
type ServerConfig struct {
	Addr              string   `json:"addr,omitempty" env:"LITHE_ADDR"`
	AllowedOrigins    []string `json:"allowedOrigins,omitempty" env:"LITHE_ALLOWED_ORIGINS"`
	TrustProxyHeaders bool     `json:"trustProxyHeaders,omitempty" env:"LITHE_TRUST_PROXY"`

	ReadTimeout  string `json:"readTimeout,omitempty" env:"LITHE_READ_TIMEOUT"`
	WriteTimeout string `json:"writeTimeout,omitempty" env:"LITHE_WRITE_TIMEOUT"`
	PingInterval string `json:"pingInterval,omitempty" env:"LITHE_PING_INTERVAL"`

	MaxSessions         int    `json:"maxSessions,omitempty" env:"LITHE_MAX_SESSIONS"`
	MaxSessionsPerIP    int    `json:"maxSessionsPerIp,omitempty" env:"LITHE_MAX_SESSIONS_PER_IP"`
	MaxDetachedSessions int    `json:"maxDetachedSessions,omitempty"`
	ResumeWindow        string `json:"resumeWindow,omitempty" env:"LITHE_RESUME_WINDOW"`

	RateLimit float64 `json:"rateLimit,omitempty" env:"LITHE_RATE_LIMIT"`
	RateBurst int     `json:"rateBurst,omitempty" env:"LITHE_RATE_BURST"`

	HistorySize   int `json:"historySize,omitempty" env:"LITHE_HISTORY_SIZE"`
	SendQueueSize int `json:"sendQueueSize,omitempty"`
}

// StoreConfig declares one store registered at startup. Initial is the
// starting value as raw JSON.
type StoreConfig struct {
	Name    string          `json:"name"`
	Initial json.RawMessage `json:"initial,omitempty"`
}

// SnapshotConfig configures state persistence.
type SnapshotConfig struct {
	// Backend is one of: memory, sqlite, redis, s3. Empty disables
	// persistence.
	Backend string `json:"backend,omitempty" env:"LITHE_SNAPSHOT_BACKEND"`

	// Checkpoint is a cron expression for periodic persistence.
	Checkpoint string `json:"checkpoint,omitempty" env:"LITHE_CHECKPOINT"`

	// SQLite
	Path string `json:"path,omitempty" env:"LITHE_SQLITE_PATH"`

	// Redis
	RedisAddr     string `json:"redisAddr,omitempty" env:"LITHE_REDIS_ADDR"`
	RedisPassword string `json:"redisPassword,omitempty" env:"LITHE_REDIS_PASSWORD"`
	RedisDB       int    `json:"redisDb,omitempty" env:"LITHE_REDIS_DB"`
	RedisPrefix   string `json:"redisPrefix,omitempty"`

	// S3
	S3Bucket string `json:"s3Bucket,omitempty" env:"LITHE_S3_BUCKET"`
	S3Region string `json:"s3Region,omitempty" env:"LITHE_S3_REGION"`
	S3Prefix string `json:"s3Prefix,omitempty"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// Metrics exposes GET /metrics.
	Metrics bool `json:"metrics,omitempty" env:"LITHE_METRICS"`

	// OTLPEndpoint enables OTLP trace export when set.
	OTLPEndpoint string `json:"otlpEndpoint,omitempty" env:"LITHE_OTLP_ENDPOINT"`

	// ServiceName overrides the service name on exported traces.
	ServiceName string `json:"serviceName,omitempty" env:"LITHE_SERVICE_NAME"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  "60s",
			WriteTimeout: "10s",
			PingInterval: "30s",
			ResumeWindow: "5m",
		},
		Snapshot: SnapshotConfig{
			Path:        "lithe.db",
			RedisPrefix: "lithe:snapshot:",
			S3Prefix:    "lithe/snapshots/",
		},
	}
}

// Load reads lithe.json from the specified directory and applies the
// environment overlay.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path and
// applies the environment overlay.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E301").
				WithDetail("no %s found at %s", ConfigFileName, path).
				WithSuggestion("Create lithe.json or pass --config with the file's location")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("parse %s: %v", path, err).
			WithSuggestion("Check that lithe.json is valid JSON")
	}
	cfg.configPath = path

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// FromEnv builds a config from defaults and environment variables
// only, for running without a lithe.json.
func FromEnv() (*Config, error) {
	cfg := New()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnv overlays LITHE_* environment variables onto the config.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.New("E102").WithDetail("environment overlay: %v", err).Wrap(err)
	}
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	def := New()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.PingInterval == "" {
		c.Server.PingInterval = def.Server.PingInterval
	}
	if c.Server.ResumeWindow == "" {
		c.Server.ResumeWindow = def.Server.ResumeWindow
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = def.Snapshot.Path
	}
	if c.Snapshot.RedisPrefix == "" {
		c.Snapshot.RedisPrefix = def.Snapshot.RedisPrefix
	}
	if c.Snapshot.S3Prefix == "" {
		c.Snapshot.S3Prefix = def.Snapshot.S3Prefix
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	for _, field := range []struct{ name, value string }{
		{"server.readTimeout", c.Server.ReadTimeout},
		{"server.writeTimeout", c.Server.WriteTimeout},
		{"server.pingInterval", c.Server.PingInterval},
		{"server.resumeWindow", c.Server.ResumeWindow},
	} {
		if _, err := parseDuration(field.name, field.value); err != nil {
			return err
		}
	}

	if c.Server.MaxSessions < 0 || c.Server.MaxSessionsPerIP < 0 {
		return errors.New("E102").WithDetail("session caps must not be negative")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("E102").WithDetail("rate limit settings must not be negative")
	}

	seen := make(map[string]bool, len(c.Stores))
	for _, sc := range c.Stores {
		if sc.Name == "" {
			return errors.New("E102").WithDetail("a store entry is missing its name")
		}
		if seen[sc.Name] {
			return errors.New("E102").WithDetail("store %q is declared twice", sc.Name)
		}
		seen[sc.Name] = true
		if len(sc.Initial) > 0 && !json.Valid(sc.Initial) {
			return errors.New("E103").WithDetail("store %q: %s", sc.Name, sc.Initial)
		}
	}

	switch c.Snapshot.Backend {
	case "", BackendMemory, BackendSQLite, BackendRedis, BackendS3:
	default:
		return errors.New("E202").WithDetail("backend %q", c.Snapshot.Backend).
			WithSuggestion("Use one of: memory, sqlite, redis, s3")
	}
	if c.Snapshot.Backend == BackendRedis && c.Snapshot.RedisAddr == "" {
		return errors.New("E102").WithDetail("snapshot.redisAddr is required for the redis backend")
	}
	if c.Snapshot.Backend == BackendS3 && c.Snapshot.S3Bucket == "" {
		return errors.New("E102").WithDetail("snapshot.s3Bucket is required for the s3 backend")
	}

	return nil
}

// BuildServerConfig converts the server section to a server.Config.
// Call Validate first; duration parse failures surface here too.
func (c *Config) BuildServerConfig() (*server.Config, error) {
	readTimeout, err := parseDuration("server.readTimeout", c.Server.ReadTimeout)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := parseDuration("server.writeTimeout", c.Server.WriteTimeout)
	if err != nil {
		return nil, err
	}
	pingInterval, err := parseDuration("server.pingInterval", c.Server.PingInterval)
	if err != nil {
		return nil, err
	}
	resumeWindow, err := parseDuration("server.resumeWindow", c.Server.ResumeWindow)
	if err != nil {
		return nil, err
	}

	return &server.Config{
		Addr:                c.Server.Addr,
		AllowedOrigins:      c.Server.AllowedOrigins,
		TrustProxyHeaders:   c.Server.TrustProxyHeaders,
		ReadTimeout:         readTimeout,
		WriteTimeout:        writeTimeout,
		PingInterval:        pingInterval,
		MaxSessions:         c.Server.MaxSessions,
		MaxSessionsPerIP:    c.Server.MaxSessionsPerIP,
		MaxDetachedSessions: c.Server.MaxDetachedSessions,
		ResumeWindow:        resumeWindow,
		RateLimit:           c.Server.RateLimit,
		RateBurst:           c.Server.RateBurst,
		HistorySize:         c.Server.HistorySize,
		SendQueueSize:       c.Server.SendQueueSize,
		EnableMetrics:       c.Telemetry.Metrics,
	}, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.New("E102").
			WithDetail("%s: %q is not a duration", name, value).
			WithSuggestion(`Use a Go duration string like "30s" or "5m"`)
	}
	if d < 0 {
		return 0, errors.New("E102").WithDetail("%s must not be negative", name)
	}
	return d, nil
}
