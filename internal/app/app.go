// Package app wires every subsystem together (gateway session, scheduler,
// pipeline, command interpreter, backup job) and runs them as one
// errgroup-supervised process for the configured bot identity.
package app

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/ksbot/internal/config"
)

// App is the root application object. It owns the configuration, identity,
// and logger, plus the cleanup functions registered by Wire.
type App struct {
	cfg      *config.Config
	identity *config.Identity
	logger   *slog.Logger
	closers  []func()
}

// New creates a new App from the given configuration, resolved identity,
// and logger.
func New(cfg *config.Config, identity *config.Identity, logger *slog.Logger) *App {
	return &App{
		cfg:      cfg,
		identity: identity,
		logger:   logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and blocks until ctx is cancelled or a
// subsystem fails fatally. The cleanup function returned by Wire is
// registered for Close; Run itself does not run it.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("dev", a.cfg.Dev),
	)

	var reg *prometheus.Registry
	var registerer prometheus.Registerer
	if a.cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		registerer = reg
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.identity, registerer, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, cleanup)

	return a.Serve(ctx, deps, reg)
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
