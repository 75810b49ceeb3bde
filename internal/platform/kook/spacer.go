package kook

import (
	"context"
	"time"
)

// spacer enforces the global minimum inter-request spacing (§4.1): a
// single-permit token bucket refilled every `interval`. Each acquire blocks
// until a token is available, serializing outbound requests platform-wide
// at that granularity.
type spacer struct {
	tokens chan struct{}
	done   chan struct{}
}

func newSpacer(interval time.Duration) *spacer {
	s := &spacer{
		tokens: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.tokens <- struct{}{} // first request proceeds immediately

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				select {
				case s.tokens <- struct{}{}:
				default:
				}
			}
		}
	}()

	return s
}

func (s *spacer) wait(ctx context.Context) error {
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *spacer) stop() {
	close(s.done)
}
