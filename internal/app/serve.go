package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ksbot/internal/server"
)

// shutdownGrace bounds how long the metrics HTTP server is given to drain
// in-flight scrapes once the run context is cancelled.
const shutdownGrace = 5 * time.Second

// Serve runs the orchestrator, and whichever of the metrics server / backup
// cron are enabled, as sibling tasks under one errgroup. A clean ctx
// cancellation yields a nil error; any other failure cancels the rest.
func (a *App) Serve(ctx context.Context, deps *Dependencies, reg *prometheus.Registry) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Orchestrator.Run(ctx)
	})

	if a.cfg.Metrics.Enabled {
		srv := server.NewServer(server.Config{Addr: a.cfg.Metrics.Addr}, reg, a.logger)
		g.Go(func() error {
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		})
	}

	if deps.BackupJob != nil {
		g.Go(func() error {
			err := deps.BackupJob.RunCron(ctx, a.cfg.Backup.Cron)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}
