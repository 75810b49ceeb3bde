package kook

import (
	"context"
	"testing"
	"time"
)

func TestSpacerFirstAcquireProceedsImmediately(t *testing.T) {
	s := newSpacer(time.Hour)
	defer s.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
}

func TestSpacerSecondAcquireWaitsForRefill(t *testing.T) {
	s := newSpacer(20 * time.Millisecond)
	defer s.stop()

	ctx := context.Background()
	if err := s.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := s.wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("second wait returned after %v, want it to block for a refill tick", elapsed)
	}
}

func TestSpacerWaitRespectsContextCancellation(t *testing.T) {
	s := newSpacer(time.Hour)
	defer s.stop()

	// Drain the initial token so the next wait would otherwise block forever.
	_ = s.wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := s.wait(ctx); err == nil {
		t.Fatal("wait with an expiring context returned nil error")
	}
}
