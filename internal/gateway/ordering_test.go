package gateway

import (
	"bytes"
	"testing"
)

func TestOrderingBufferReleasesInOrder(t *testing.T) {
	b := NewOrderingBuffer(0)

	if released := b.Accept(1, []byte("one")); len(released) != 1 {
		t.Fatalf("Accept(1) released %d frames, want 1", len(released))
	}
	if b.CurrentSN() != 1 {
		t.Fatalf("CurrentSN = %d, want 1", b.CurrentSN())
	}
}

func TestOrderingBufferHoldsGapsUntilFilled(t *testing.T) {
	b := NewOrderingBuffer(0)

	if released := b.Accept(2, []byte("two")); len(released) != 0 {
		t.Fatalf("Accept(2) with gap at 1 released %d frames, want 0", len(released))
	}
	if released := b.Accept(3, []byte("three")); len(released) != 0 {
		t.Fatalf("Accept(3) with gap at 1 released %d frames, want 0", len(released))
	}

	released := b.Accept(1, []byte("one"))
	if len(released) != 3 {
		t.Fatalf("Accept(1) filling the gap released %d frames, want 3", len(released))
	}
	if !bytes.Equal(released[0], []byte("one")) || !bytes.Equal(released[2], []byte("three")) {
		t.Fatalf("released frames out of order: %v", released)
	}
	if b.CurrentSN() != 3 {
		t.Fatalf("CurrentSN = %d, want 3", b.CurrentSN())
	}
}

func TestOrderingBufferDropsDuplicates(t *testing.T) {
	b := NewOrderingBuffer(5)

	if released := b.Accept(5, []byte("stale")); released != nil {
		t.Fatalf("Accept(5) with currentSN=5 released %v, want nil", released)
	}
	if released := b.Accept(3, []byte("older")); released != nil {
		t.Fatalf("Accept(3) with currentSN=5 released %v, want nil", released)
	}
}

func TestOrderingBufferReset(t *testing.T) {
	b := NewOrderingBuffer(0)
	b.Accept(2, []byte("two"))
	b.Reset()

	if b.CurrentSN() != 0 {
		t.Fatalf("CurrentSN after Reset = %d, want 0", b.CurrentSN())
	}
	if released := b.Accept(1, []byte("one")); len(released) != 1 {
		t.Fatalf("Accept(1) after Reset released %d frames, want 1", len(released))
	}
}
