package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/ksbot/internal/backup"
	"github.com/alanyoungcy/ksbot/internal/command"
	"github.com/alanyoungcy/ksbot/internal/config"
	"github.com/alanyoungcy/ksbot/internal/domain"
	"github.com/alanyoungcy/ksbot/internal/feed"
	"github.com/alanyoungcy/ksbot/internal/gateway"
	"github.com/alanyoungcy/ksbot/internal/metrics"
	"github.com/alanyoungcy/ksbot/internal/pipeline"
	"github.com/alanyoungcy/ksbot/internal/platform/kook"
	"github.com/alanyoungcy/ksbot/internal/scheduler"
	"github.com/alanyoungcy/ksbot/internal/store/bbolt"

	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies bundles every concrete component the application needs to
// run a session. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Store   domain.SubscriptionStore
	Client  *kook.Client
	Records *gateway.RecordStore

	Session      *gateway.Session
	Scheduler    *scheduler.Scheduler
	Interpreter  *command.Interpreter
	Orchestrator *pipeline.Orchestrator

	Metrics    *metrics.Metrics
	BackupJob  *backup.Job
}

// Wire constructs every dependency named in Dependencies from cfg and the
// resolved bot identity, returning a cleanup function that releases the
// store file, record file, and HTTP client on shutdown.
func Wire(ctx context.Context, cfg *config.Config, identity *config.Identity, reg prometheus.Registerer, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, err := bbolt.Open(cfg.Store.Path)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: store: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	records, initial, err := gateway.OpenRecordStore(cfg.Gateway.RecordPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: session record: %w", err)
	}
	closers = append(closers, func() { _ = records.Close() })

	client := kook.New(cfg.Platform.BaseURL, identity.Token, cfg.Platform.RequestSpacing.Duration, cfg.Platform.RequestTimeout.Duration, logger)
	closers = append(closers, client.Close)

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	sessionCfg := gateway.Config{
		HeartbeatInterval:  cfg.Gateway.HeartbeatInterval.Duration,
		RecordSyncInterval: cfg.Gateway.RecordSyncInterval.Duration,
		BackoffBase:        cfg.Gateway.BackoffBase,
		GatewayRetryDelay:  cfg.Gateway.GatewayRetryDelay.Duration,
		DialTimeout:        cfg.Platform.RequestTimeout.Duration,
	}
	session := gateway.NewSession(client, records, initial, sessionCfg, m, logger)

	fetcher := feed.New(cfg.Fetch.RedirectLimit, cfg.Fetch.Timeout.Duration, cfg.Fetch.SizeCapBytes, cfg.Fetch.UserAgent)

	pusher := pipeline.NewPusher(store, client, m, logger)
	poller := pipeline.NewPoller(fetcher, store, pusher, cfg.Scheduler.StaleFeedAfter.Duration, m, logger)

	throttle := scheduler.NewThrottle(cfg.Scheduler.ThrottlePieces, cfg.Scheduler.ThrottleUnit.Duration)
	sched := scheduler.New(store, throttle, cfg.Scheduler.TickInterval.Duration, cfg.MinInterval, poller.Fetch, logger)

	interp := command.New(store, fetcher, pusher, client, cfg.Command.StaleMessageCutoff.Duration, m, logger)

	orch := pipeline.NewOrchestrator(session, session, sched, client, interp, client, logger)

	var job *backup.Job
	if cfg.Backup.Enabled {
		s3Client, err := backup.New(ctx, backup.ClientConfig{
			Endpoint:       cfg.Backup.Endpoint,
			Region:         cfg.Backup.Region,
			Bucket:         cfg.Backup.Bucket,
			AccessKey:      cfg.Backup.AccessKey,
			SecretKey:      cfg.Backup.SecretKey,
			UseSSL:         cfg.Backup.UseSSL,
			ForcePathStyle: cfg.Backup.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: backup client: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		writer := backup.NewWriter(s3Client)
		reader := backup.NewReader(s3Client)
		job = backup.NewJob(writer, reader, cfg.Store.Path, 14, logger)
	}

	deps := &Dependencies{
		Store:        store,
		Client:       client,
		Records:      records,
		Session:      session,
		Scheduler:    sched,
		Interpreter:  interp,
		Orchestrator: orch,
		Metrics:      m,
		BackupJob:    job,
	}

	return deps, cleanup, nil
}
