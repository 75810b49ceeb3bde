package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/ksbot/internal/domain"
	"github.com/alanyoungcy/ksbot/internal/feed"
	"github.com/alanyoungcy/ksbot/internal/metrics"
)

type fakePuller struct {
	parsed *feed.ParsedFeed
	err    error
}

func (p *fakePuller) Pull(context.Context, string) (*feed.ParsedFeed, error) {
	return p.parsed, p.err
}

func TestFetchPushesOnlyNewPosts(t *testing.T) {
	current := &domain.Feed{
		SubscribeURL: "http://example.com/feed",
		PostsHash:    []string{domain.HashString("http://example.com/old")},
	}
	store := &fakeStore{
		prior:    current,
		channels: []*domain.Channel{{ID: "c1"}},
	}
	sender := &fakeSender{}
	pusher := NewPusher(store, sender, metrics.New(prometheus.NewRegistry()), discardLogger())
	puller := &fakePuller{parsed: &feed.ParsedFeed{
		Posts: []domain.Post{
			{Title: "new post", Link: "http://example.com/new"},
			{Title: "old post", Link: "http://example.com/old"},
		},
	}}

	poller := NewPoller(puller, store, pusher, time.Hour, metrics.New(prometheus.NewRegistry()), discardLogger())
	poller.Fetch(context.Background(), current)

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %v, want exactly one push for the new post", sender.sent)
	}
}

func TestFetchErrorChecksStaleness(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	pusher := NewPusher(store, sender, metrics.New(prometheus.NewRegistry()), discardLogger())
	puller := &fakePuller{err: context.DeadlineExceeded}

	poller := NewPoller(puller, store, pusher, time.Hour, metrics.New(prometheus.NewRegistry()), discardLogger())
	stale := &domain.Feed{
		SubscribeURL: "http://example.com/feed",
		DownTime:     time.Now().Add(-2 * time.Hour).Unix(),
	}

	// Fetch must not panic and must not touch the store on a pull error.
	poller.Fetch(context.Background(), stale)

	if store.updated != nil {
		t.Fatal("store was updated despite a failed pull")
	}
}
