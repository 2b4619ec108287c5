package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/sketchforge/internal/adapter/openai"
	sfotel "github.com/Strob0t/sketchforge/internal/adapter/otel"
	"github.com/Strob0t/sketchforge/internal/adapter/ristretto"
	"github.com/Strob0t/sketchforge/internal/adapter/ws"
	"github.com/Strob0t/sketchforge/internal/config"
	"github.com/Strob0t/sketchforge/internal/logger"
	"github.com/Strob0t/sketchforge/internal/service"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg         *config.Config
	hub         *ws.Hub
	cache       *ristretto.Cache
	orch        *service.Orchestrator
	provisioner *service.Provisioner
	scaffolder  *service.Scaffolder

	logCloser         logger.Closer
	shutdownTelemetry sfotel.ShutdownFunc
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.LoadFrom(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)

	shutdownTelemetry, err := sfotel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := sfotel.NewMetrics()
	if err != nil {
		_ = shutdownTelemetry(ctx)
		logCloser.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	c, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		logCloser.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}

	hub := ws.NewHub(ws.OriginPatterns(cfg.Server.CORSOrigin)...)
	reporter := service.NewReporter(hub)
	deps := service.WorkspaceDepsFromConfig(cfg, openai.NewFactory(cfg.OpenAI, cfg.Breaker), c)
	registry := service.NewRegistry(deps, reporter)

	slog.Info("config loaded",
		"addr", cfg.Server.Addr,
		"openai_base_url", cfg.OpenAI.BaseURL,
		"log_level", cfg.Logging.Level,
		"result_field", cfg.Transpile.ResultField,
	)

	return &app{
		cfg:               cfg,
		hub:               hub,
		cache:             c,
		orch:              service.NewOrchestrator(registry, reporter, service.WithMetrics(metrics)),
		provisioner:       service.NewProvisioner(registry, reporter, metrics),
		scaffolder:        service.NewScaffolder(reporter),
		logCloser:         logCloser,
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

// Close stops running attempts and flushes telemetry and logs.
func (a *app) Close() {
	a.orch.Close()
	st := a.cache.Stats()
	slog.Info("identity cache stats", "hits", st.Hits, "misses", st.Misses, "rejected", st.Rejected)
	a.cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTelemetry(ctx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
	a.logCloser.Close()
}
