package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/lithe-dev/lithe"
	"github.com/lithe-dev/lithe/internal/config"
	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/middleware"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the store server",
		Long: `Start the store server.

Configuration is read from lithe.json in the working directory,
overlaid with LITHE_* environment variables. A .env file next to
the binary is loaded first if present.

Examples:
  lithe serve
  lithe serve --config=deploy/lithe.json
  lithe serve --addr=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to lithe.json (default ./lithe.json)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

func runServe(configPath, addr string) error {
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []lithe.Option
	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(flushCtx)
		}()
		opts = append(opts, lithe.WithMiddleware(middleware.OpenTelemetry()))
	}

	app, err := lithe.New(append(opts, lithe.WithConfig(cfg))...)
	if err != nil {
		return err
	}

	printBanner()
	info("listening on %s", cfg.Server.Addr)
	if len(cfg.Stores) > 0 {
		info("stores: %d configured", len(cfg.Stores))
	}
	if cfg.Snapshot.Backend != "" {
		info("snapshots: %s", cfg.Snapshot.Backend)
	} else {
		warn("no snapshot backend; state is lost on restart")
	}

	if err := app.Run(ctx); err != nil {
		return err
	}
	success("shut down cleanly")
	return nil
}

// loadConfig resolves configuration for a command: an explicit file,
// lithe.json in the working directory, or environment variables alone.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load(".")
	if errors.Is(err, "E301") {
		return config.FromEnv()
	}
	return cfg, err
}

// setupTracing installs a global OTLP trace provider and returns its
// shutdown function.
func setupTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Telemetry.OTLPEndpoint),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.Telemetry.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
