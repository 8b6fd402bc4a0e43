// Command instant-nav runs a navigation cache engine with its diagnostics
// HTTP server: page/resource caches, prerender pool, compressed tab
// snapshots, and tiered content blocking.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"github.com/wolfeidau/instant-nav/navigator"
	"github.com/wolfeidau/instant-nav/server"
	"github.com/wolfeidau/instant-nav/telemetry"
	"github.com/wolfeidau/instant-nav/turbo"
)

var version = "dev"

type cli struct {
	Address          string `help:"Address for the diagnostics server." default:":8090"`
	AuthToken        string `help:"Bearer token for mutating diagnostics endpoints." env:"INSTANT_NAV_AUTH_TOKEN"`
	PageCacheBytes   int64  `help:"Byte budget for the rendered-page cache." default:"104857600"`
	PageCacheMax     int    `help:"Maximum number of cached pages." default:"50"`
	ResourceBytes    int64  `help:"Byte budget for the raw sub-resource cache." default:"52428800"`
	PrerenderSlots   int    `help:"Number of concurrent prerender slots." default:"1"`
	Tier             string `help:"Initial content-blocking tier." enum:"off,light,medium,extreme" default:"off"`
	CompressionLevel int    `help:"Snapshot compression level (1-9)." default:"3"`
	SnapshotPath     string `help:"Optional database file for persisting deactivated tabs."`
	OTLPEndpoint     string `help:"OTLP gRPC endpoint for metrics export." env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Prometheus       bool   `help:"Expose Prometheus metrics on /metrics." default:"true"`
	LogLevel         string `help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat        string `help:"Log format." enum:"text,json" default:"text"`
	Version          kong.VersionFlag
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("instant-nav"),
		kong.Description("Navigation cache engine with a diagnostics server."),
		kong.Vars{"version": version},
	)
	kctx.FatalIfErrorf(run(flags))
}

func run(flags cli) error {
	logger, err := buildLogger(flags.LogLevel, flags.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	tier, err := turbo.ParseTier(flags.Tier)
	if err != nil {
		return err
	}

	shutdownMetrics, err := telemetry.InitMetrics(context.Background(), telemetry.MetricsConfig{
		ServiceName:      "instant-nav",
		ServiceVersion:   version,
		OTLPEndpoint:     flags.OTLPEndpoint,
		EnablePrometheus: flags.Prometheus,
	})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	coordinator, err := navigator.New(navigator.Config{
		PageCacheMaxBytes:     flags.PageCacheBytes,
		PageCacheMaxPages:     flags.PageCacheMax,
		ResourceCacheMaxBytes: flags.ResourceBytes,
		PrerenderSlots:        flags.PrerenderSlots,
		DefaultTier:           tier,
		CompressionLevel:      flags.CompressionLevel,
		SnapshotPath:          flags.SnapshotPath,
		Logger:                logger,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	srv := server.New(server.Config{
		Address:   flags.Address,
		AuthToken: flags.AuthToken,
		Logger:    logger.With("component", "server"),
	}, coordinator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("instant-nav started",
		"version", version,
		"address", srv.Address(),
		"tier", tier.String(),
		"snapshot_path", flags.SnapshotPath,
	)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := coordinator.Close(); err != nil {
			return err
		}
		return shutdownMetrics(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildLogger builds a slog logger: tint for human-readable text, the
// stock JSON handler otherwise.
func buildLogger(levelName, format string) (*slog.Logger, error) {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", levelName)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level})
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}
