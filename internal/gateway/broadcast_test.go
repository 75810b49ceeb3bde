package gateway

import (
	"log/slog"
	"testing"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

func TestBroadcastPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroadcast(slog.New(slog.DiscardHandler))

	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	ev := domain.SessionEvent{}
	b.Publish(ev)

	select {
	case <-ch1:
	default:
		t.Fatal("subscriber 1 did not receive the published event")
	}
	select {
	case <-ch2:
	default:
		t.Fatal("subscriber 2 did not receive the published event")
	}
}

func TestBroadcastUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcast(slog.New(slog.DiscardHandler))

	ch, unsub := b.Subscribe()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
}

func TestBroadcastDropsWhenSubscriberBufferIsFull(t *testing.T) {
	b := NewBroadcast(slog.New(slog.DiscardHandler))

	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < broadcastCapacity+5; i++ {
		b.Publish(domain.SessionEvent{})
	}

	// Drain what fit; the subscriber's id is 0 since it was the first one
	// registered against a freshly constructed Broadcast.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
			continue
		default:
		}
		break
	}
	if drained != broadcastCapacity {
		t.Fatalf("drained = %d, want %d (buffer capacity)", drained, broadcastCapacity)
	}
	if b.Dropped(0) == 0 {
		t.Fatal("Dropped(0) = 0, want some drops recorded")
	}
}
