package domain

import "testing"

func TestNewChannelStartsEmpty(t *testing.T) {
	c := NewChannel("chan1")

	if c.ID != "chan1" {
		t.Fatalf("ID = %q, want chan1", c.ID)
	}
	if len(c.FeedHash) != 0 || len(c.FeedRegex) != 0 {
		t.Fatalf("c = %+v, want empty maps", c)
	}
}

func TestNewChannelMapsAreIndependentPerInstance(t *testing.T) {
	a := NewChannel("a")
	b := NewChannel("b")

	a.FeedHash["feed-x"] = struct{}{}

	if _, ok := b.FeedHash["feed-x"]; ok {
		t.Fatal("FeedHash is shared across Channel instances")
	}
}
