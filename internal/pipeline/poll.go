package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ksbot/internal/domain"
	"github.com/alanyoungcy/ksbot/internal/feed"
	"github.com/alanyoungcy/ksbot/internal/metrics"
)

// Puller is the subset of internal/feed.Fetcher the poller needs.
type Puller interface {
	Pull(ctx context.Context, url string) (*feed.ParsedFeed, error)
}

// Poller is the scheduler.FetchFunc implementation: pull, build the next
// snapshot, diff against what was stored, push anything new, and track
// feed-down state for freshness supervision.
type Poller struct {
	fetcher    Puller
	store      domain.SubscriptionStore
	pusher     *Pusher
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
	metrics    *metrics.Metrics
}

func NewPoller(fetcher Puller, store domain.SubscriptionStore, pusher *Pusher, staleAfter time.Duration, m *metrics.Metrics, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:    fetcher,
		store:      store,
		pusher:     pusher,
		staleAfter: staleAfter,
		logger:     logger.With(slog.String("component", "poller")),
		now:        time.Now,
		metrics:    m,
	}
}

// Fetch matches scheduler.FetchFunc. current is the snapshot last
// persisted in the store (what the scheduler read at tick time); on
// success it is superseded by the freshly pulled one.
func (p *Poller) Fetch(ctx context.Context, current *domain.Feed) {
	start := p.now()
	parsed, err := p.fetcher.Pull(ctx, current.SubscribeURL)
	if err != nil {
		p.metrics.ObserveFeedPoll("error", p.now().Sub(start).Seconds())
		p.logger.Warn("pulling feed failed", slog.String("feed", current.SubscribeURL), slog.Any("error", err))
		p.checkStale(current)
		return
	}
	p.metrics.ObserveFeedPoll("ok", p.now().Sub(start).Seconds())

	next := domain.FromFetch(current.SubscribeURL, parsed.Link, parsed.Title, parsed.TTLMinutes, parsed.Posts, p.now().Unix(), current)

	prior, err := p.store.UpdateOrCreateFeed(ctx, next)
	if err != nil {
		p.logger.Error("persisting feed snapshot", slog.String("feed", current.SubscribeURL), slog.Any("error", err))
		return
	}

	indices := domain.DiffPostIndices(next, prior)
	for _, i := range indices {
		p.pusher.Push(ctx, next, next.Posts[i])
	}
}

// checkStale implements the feed freshness supervision supplement: a high
// severity log, never an automatic unsubscribe, once a feed has gone
// unpolled for longer than staleAfter since its down_time (the last
// successful fetch, §4.9 supplement).
func (p *Poller) checkStale(f *domain.Feed) {
	if f.DownTime == 0 {
		return
	}
	lastSuccess := time.Unix(f.DownTime, 0)
	if p.now().Sub(lastSuccess) > p.staleAfter {
		p.logger.Error("feed has been unreachable past the staleness threshold, consider removing it",
			slog.String("feed", f.SubscribeURL),
			slog.Time("last_success", lastSuccess),
		)
	}
}
