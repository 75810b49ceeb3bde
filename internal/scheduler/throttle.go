// Package scheduler implements the Poll Scheduler (C8): a per-feed
// next-due time checked on every tick, and the request throttle that
// spaces fetches within a tick.
package scheduler

import (
	"context"
	"time"
)

// Throttle hands out numbered tickets from a pool of pieces tickets
// (0..pieces-1) and makes the holder of ticket n wait n*unit before
// proceeding, so a burst of up to pieces fetches spreads out over
// pieces*unit instead of firing all at once. While every ticket is held, a
// further Acquire blocks until one is released; it does not wrap around to
// ticket 0. Grounded in original_source/src/utils.rs's Throttle/Opportunity:
// Rust releases the ticket on Drop, Go does it with a caller-deferred
// release closure instead.
type Throttle struct {
	pieces  int
	unit    time.Duration
	tickets chan int
}

// NewThrottle creates a throttle with the given number of pieces (the
// size of the ticket pool) and the sleep unit per ticket position.
func NewThrottle(pieces int, unit time.Duration) *Throttle {
	t := &Throttle{
		pieces:  pieces,
		unit:    unit,
		tickets: make(chan int, pieces),
	}
	for i := 0; i < pieces; i++ {
		t.tickets <- i
	}
	return t
}

// Acquire blocks until a ticket is available, sleeps the ticket's slot
// delay, and returns a release func the caller must defer-call to return
// the ticket to the pool.
func (t *Throttle) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n := <-t.tickets:
		timer := time.NewTimer(time.Duration(n) * t.unit)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			t.tickets <- n
			return nil, ctx.Err()
		case <-timer.C:
		}
		return func() { t.tickets <- n }, nil
	}
}
