package gateway

import (
	"log/slog"
	"sync"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

const broadcastCapacity = 64

// Broadcast is the session's outbound event fan-out: one producer, many
// subscribers, bounded capacity per subscriber. A slow subscriber's channel
// fills and further publishes to it are dropped rather than blocking the
// producer or silently reordering -- the redesign flag in §9 requires
// missed items be detectable, so each drop is logged with the subscriber
// id and a running drop count subscribers can inspect via Dropped.
type Broadcast struct {
	mu      sync.Mutex
	subs    map[int]chan domain.SessionEvent
	nextID  int
	dropped map[int]uint64
	logger  *slog.Logger
}

func NewBroadcast(logger *slog.Logger) *Broadcast {
	return &Broadcast{
		subs:    map[int]chan domain.SessionEvent{},
		dropped: map[int]uint64{},
		logger:  logger.With(slog.String("component", "broadcast")),
	}
}

// Subscribe registers a new subscriber and returns its channel and an
// unsubscribe function.
func (b *Broadcast) Subscribe() (<-chan domain.SessionEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan domain.SessionEvent, broadcastCapacity)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish fans ev out to every subscriber. A full subscriber channel is
// skipped (never blocked on) and its drop counter incremented.
func (b *Broadcast) Publish(ev domain.SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped[id]++
			b.logger.Warn("subscriber lagging, dropping event",
				slog.Int("subscriber", id),
				slog.Uint64("dropped_total", b.dropped[id]),
			)
		}
	}
}

// Dropped returns the number of events dropped for a given subscriber id.
func (b *Broadcast) Dropped(id int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped[id]
}
