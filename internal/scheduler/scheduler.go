package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

// FetchFunc performs one feed refetch. It is responsible for pulling the
// feed, diffing it against the stored copy, and pushing any new posts --
// the scheduler only decides when to call it.
type FetchFunc func(ctx context.Context, feed *domain.Feed)

// MinIntervalFunc returns the floor refetch interval (§4.8, dev vs prod).
type MinIntervalFunc func() time.Duration

// Scheduler is the Poll Scheduler (C8): every tick it lists subscribed
// feeds from the store and dispatches a throttled fetch for any feed whose
// delay has elapsed, skipping feeds with a fetch already in flight so a
// slow poll never overlaps itself. A feed seen for the first time is
// fetched on that tick; its delay starts after that fetch.
type Scheduler struct {
	store       domain.SubscriptionStore
	throttle    *Throttle
	tickEvery   time.Duration
	minInterval MinIntervalFunc
	fetch       FetchFunc
	logger      *slog.Logger

	mu       sync.Mutex
	nextDue  map[string]time.Time
	inFlight map[string]bool
}

func New(store domain.SubscriptionStore, throttle *Throttle, tickEvery time.Duration, minInterval MinIntervalFunc, fetch FetchFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		throttle:    throttle,
		tickEvery:   tickEvery,
		minInterval: minInterval,
		fetch:       fetch,
		logger:      logger.With(slog.String("component", "scheduler")),
		nextDue:     map[string]time.Time{},
		inFlight:    map[string]bool{},
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	feeds, err := s.store.ListFeeds(ctx)
	if err != nil {
		s.logger.Error("listing feeds", slog.Any("error", err))
		return
	}

	now := time.Now()
	for _, feed := range feeds {
		if len(feed.ChannelIDs) == 0 {
			continue
		}

		s.mu.Lock()
		due, seen := s.nextDue[feed.SubscribeURL]
		busy := s.inFlight[feed.SubscribeURL]
		if (!seen || !now.Before(due)) && !busy {
			s.inFlight[feed.SubscribeURL] = true
			s.mu.Unlock()
			go s.runFetch(ctx, feed)
			continue
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) runFetch(ctx context.Context, feed *domain.Feed) {
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, feed.SubscribeURL)
		s.mu.Unlock()
	}()

	release, err := s.throttle.Acquire(ctx)
	if err != nil {
		return
	}
	defer release()

	s.fetch(ctx, feed)

	delay := s.delayFor(feed)
	s.mu.Lock()
	s.nextDue[feed.SubscribeURL] = time.Now().Add(delay)
	s.mu.Unlock()
}

// delayFor computes the next-refetch delay: the feed's own TTL if it
// advertised one, floored at the configured minimum interval (§4.8).
func (s *Scheduler) delayFor(feed *domain.Feed) time.Duration {
	floor := s.minInterval()
	if feed.TTLMinutes <= 0 {
		return floor
	}
	ttl := time.Duration(feed.TTLMinutes) * time.Minute
	if ttl < floor {
		return floor
	}
	return ttl
}
