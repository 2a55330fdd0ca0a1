package lithe

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/lithe-dev/lithe/internal/config"
	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/server"
	"github.com/lithe-dev/lithe/pkg/snapshot"
	"github.com/lithe-dev/lithe/pkg/store"
)

// shutdownTimeout bounds graceful shutdown and the final checkpoint.
const shutdownTimeout = 15 * time.Second

// App wires configuration, the hub, a snapshot backend, and the
// server into one runnable unit.
type App struct {
	cfg     *config.Config
	hub     *server.Hub
	srv     *server.Server
	backend snapshot.Store
	checkpt *snapshot.Checkpointer
	logger  *slog.Logger
}

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	cfg        *config.Config
	configFile string
	logger     *slog.Logger
	middleware []server.Middleware
	backend    snapshot.Store
}

// WithConfig uses an already-loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *appOptions) {
		o.cfg = cfg
	}
}

// WithConfigFile loads configuration from the given lithe.json path.
func WithConfigFile(path string) Option {
	return func(o *appOptions) {
		o.configFile = path
	}
}

// WithAppLogger sets the base logger.
func WithAppLogger(logger *slog.Logger) Option {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// WithMiddleware adds apply-pipeline middleware to the hub.
func WithMiddleware(mw ...server.Middleware) Option {
	return func(o *appOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithSnapshotBackend overrides the configured snapshot backend, e.g.
// with a fake in tests.
func WithSnapshotBackend(backend snapshot.Store) Option {
	return func(o *appOptions) {
		o.backend = backend
	}
}

// New builds an App. Configuration comes from WithConfig, the file
// named by WithConfigFile, or the environment, in that order of
// preference.
func New(opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	var err error
	if cfg == nil && o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile)
		if err != nil {
			return nil, err
		}
	}
	if cfg == nil {
		cfg, err = config.FromEnv()
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	serverCfg, err := cfg.BuildServerConfig()
	if err != nil {
		return nil, err
	}

	hub := server.NewHub(server.WithHistory(serverCfg.HistorySize))
	for _, mw := range o.middleware {
		hub.Use(mw)
	}

	app := &App{
		cfg:    cfg,
		hub:    hub,
		srv:    server.NewServer(hub, serverCfg, server.WithLogger(logger)),
		logger: logger.With("component", "app"),
	}

	if err := app.registerConfiguredStores(); err != nil {
		return nil, err
	}

	app.backend = o.backend
	if app.backend == nil {
		app.backend, err = NewSnapshotBackend(cfg)
		if err != nil {
			return nil, err
		}
	}
	if app.backend != nil && cfg.Snapshot.Checkpoint != "" {
		app.checkpt, err = snapshot.NewCheckpointer(hub, app.backend, cfg.Snapshot.Checkpoint)
		if err != nil {
			return nil, err
		}
	}

	return app, nil
}

// registerConfiguredStores creates a raw-JSON store for every entry in
// the config's stores section.
func (a *App) registerConfiguredStores() error {
	for _, sc := range a.cfg.Stores {
		initial := json.RawMessage("null")
		if len(sc.Initial) > 0 {
			initial = sc.Initial
		}
		if err := server.Register(a.hub, sc.Name, store.NewWritable(initial)); err != nil {
			return err
		}
	}
	return nil
}

// NewSnapshotBackend builds the snapshot backend named by the
// configuration, or nil when persistence is disabled. The caller owns
// the returned backend and must Close it.
func NewSnapshotBackend(cfg *config.Config) (snapshot.Store, error) {
	switch cfg.Snapshot.Backend {
	case "":
		return nil, nil
	case config.BackendMemory:
		return snapshot.NewMemory(), nil
	case config.BackendSQLite:
		return snapshot.NewSQLite(cfg.Snapshot.Path)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Snapshot.RedisAddr,
			Password: cfg.Snapshot.RedisPassword,
			DB:       cfg.Snapshot.RedisDB,
		})
		return snapshot.NewRedis(client, cfg.Snapshot.RedisPrefix), nil
	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Snapshot.S3Region))
		if err != nil {
			return nil, errors.New("E201").WithDetail("aws config: %v", err).Wrap(err)
		}
		return snapshot.NewS3(s3.NewFromConfig(awsCfg), cfg.Snapshot.S3Bucket, cfg.Snapshot.S3Prefix), nil
	default:
		return nil, errors.New("E202").WithDetail("backend %q", cfg.Snapshot.Backend)
	}
}

// Hub returns the store hub for registration and server-side writes.
func (a *App) Hub() *server.Hub {
	return a.hub
}

// Server returns the underlying server, e.g. for its http.Handler.
func (a *App) Server() *server.Server {
	return a.srv
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Run restores persisted state, starts the checkpointer and the
// server, and blocks until ctx is canceled. Shutdown takes a final
// checkpoint before closing the backend.
func (a *App) Run(ctx context.Context) error {
	if a.backend != nil {
		if err := a.hub.Restore(ctx, a.backend); err != nil {
			return err
		}
		defer a.backend.Close()
	}
	if a.checkpt != nil {
		a.checkpt.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.checkpt != nil {
		if err := a.checkpt.Stop(shutdownCtx); err != nil {
			a.logger.Error("final checkpoint failed", "error", err)
		}
	}
	return a.srv.Shutdown(shutdownCtx)
}
