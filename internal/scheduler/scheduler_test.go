package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

// fakeStore is a minimal domain.SubscriptionStore backing ListFeeds only;
// the scheduler never calls the other methods.
type fakeStore struct {
	feeds []*domain.Feed
}

func (s *fakeStore) Subscribe(context.Context, string, *domain.Feed) error         { return nil }
func (s *fakeStore) Unsubscribe(context.Context, string, string) error             { return nil }
func (s *fakeStore) TryRemoveFeed(context.Context, string) (bool, error)           { return false, nil }
func (s *fakeStore) UpdateOrCreateFeed(context.Context, *domain.Feed) (*domain.Feed, error) {
	return nil, nil
}
func (s *fakeStore) ListFeeds(context.Context) ([]*domain.Feed, error) { return s.feeds, nil }
func (s *fakeStore) ChannelFeeds(context.Context, string) ([]*domain.Feed, error) {
	return nil, nil
}
func (s *fakeStore) FeedChannels(context.Context, string) ([]*domain.Channel, error) {
	return nil, nil
}
func (s *fakeStore) SetRegex(context.Context, string, string, string) error  { return nil }
func (s *fakeStore) Regex(context.Context, string, string) (string, error) { return "", nil }
func (s *fakeStore) Close() error                                          { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSchedulerTickSkipsFeedsWithNoChannels(t *testing.T) {
	store := &fakeStore{feeds: []*domain.Feed{
		{SubscribeURL: "http://example.com/orphan"},
	}}

	var mu sync.Mutex
	var fetched []string
	fetch := func(_ context.Context, f *domain.Feed) {
		mu.Lock()
		fetched = append(fetched, f.SubscribeURL)
		mu.Unlock()
	}

	s := New(store, NewThrottle(4, 0), time.Hour, func() time.Duration { return time.Minute }, fetch, discardLogger())
	s.tick(context.Background())
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(fetched) != 0 {
		t.Fatalf("fetched = %v, want none (feed has no subscribed channels)", fetched)
	}
}

func TestSchedulerTickFetchesDueFeedOnce(t *testing.T) {
	store := &fakeStore{feeds: []*domain.Feed{
		{SubscribeURL: "http://example.com/feed", ChannelIDs: map[string]struct{}{"c1": {}}},
	}}

	var mu sync.Mutex
	var fetched []string
	fetch := func(_ context.Context, f *domain.Feed) {
		mu.Lock()
		fetched = append(fetched, f.SubscribeURL)
		mu.Unlock()
	}

	s := New(store, NewThrottle(4, 0), time.Hour, func() time.Duration { return time.Minute }, fetch, discardLogger())
	s.tick(context.Background())
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(fetched) != 1 {
		t.Fatalf("fetched = %v, want exactly one fetch", fetched)
	}
}

func TestSchedulerDelayForUsesFeedTTLWhenAboveFloor(t *testing.T) {
	s := New(&fakeStore{}, NewThrottle(1, 0), time.Hour, func() time.Duration { return time.Minute }, nil, discardLogger())

	got := s.delayFor(&domain.Feed{TTLMinutes: 10})
	if got != 10*time.Minute {
		t.Fatalf("delayFor = %v, want 10m", got)
	}
}

func TestSchedulerDelayForFloorsBelowMinInterval(t *testing.T) {
	s := New(&fakeStore{}, NewThrottle(1, 0), time.Hour, func() time.Duration { return 3 * time.Minute }, nil, discardLogger())

	got := s.delayFor(&domain.Feed{TTLMinutes: 1})
	if got != 3*time.Minute {
		t.Fatalf("delayFor = %v, want the 3m floor", got)
	}
}

func TestSchedulerDelayForZeroTTLUsesFloor(t *testing.T) {
	s := New(&fakeStore{}, NewThrottle(1, 0), time.Hour, func() time.Duration { return 3 * time.Minute }, nil, discardLogger())

	got := s.delayFor(&domain.Feed{TTLMinutes: 0})
	if got != 3*time.Minute {
		t.Fatalf("delayFor = %v, want the 3m floor", got)
	}
}
