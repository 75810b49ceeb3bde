package domain

import "testing"

func TestFromFetchTrimsToPostsHashLimit(t *testing.T) {
	posts := make([]Post, PostsHashLimit+5)
	for i := range posts {
		posts[i] = Post{Link: "http://example.com/post"}
	}

	f := FromFetch("http://example.com/feed", "http://example.com", "Example", 60, posts, 0, nil)

	if len(f.Posts) != PostsHashLimit {
		t.Fatalf("Posts = %d, want %d", len(f.Posts), PostsHashLimit)
	}
	if len(f.PostsHash) != PostsHashLimit {
		t.Fatalf("PostsHash = %d, want %d", len(f.PostsHash), PostsHashLimit)
	}
}

func TestFromFetchDropsLinklessPosts(t *testing.T) {
	posts := []Post{
		{Title: "no link"},
		{Link: "http://example.com/a"},
	}

	f := FromFetch("http://example.com/feed", "", "", 0, posts, 0, nil)

	if len(f.Posts) != 1 {
		t.Fatalf("Posts = %d, want 1", len(f.Posts))
	}
	if f.Posts[0].Link != "http://example.com/a" {
		t.Fatalf("unexpected surviving post: %+v", f.Posts[0])
	}
}

func TestFromFetchPreservesChannelIDs(t *testing.T) {
	prior := &Feed{ChannelIDs: map[string]struct{}{"chan1": {}, "chan2": {}}}

	f := FromFetch("http://example.com/feed", "", "", 0, nil, 0, prior)

	if len(f.ChannelIDs) != 2 {
		t.Fatalf("ChannelIDs = %d, want 2", len(f.ChannelIDs))
	}
	if _, ok := f.ChannelIDs["chan1"]; !ok {
		t.Fatal("chan1 missing from carried-over channel set")
	}
}

func TestDiffPostIndicesNilOldMeansEverythingIsNew(t *testing.T) {
	newFeed := &Feed{PostsHash: []string{"a", "b", "c"}}

	got := DiffPostIndices(newFeed, nil)

	if len(got) != 3 {
		t.Fatalf("DiffPostIndices = %v, want all 3 indices", got)
	}
}

func TestDiffPostIndicesOnlyReturnsUnseenHashes(t *testing.T) {
	old := &Feed{PostsHash: []string{"a", "b"}}
	newFeed := &Feed{PostsHash: []string{"c", "b", "a"}}

	got := DiffPostIndices(newFeed, old)

	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("DiffPostIndices = %v, want [0]", got)
	}
}

func TestHashStringIsStable(t *testing.T) {
	a := HashString("http://example.com/feed")
	b := HashString("http://example.com/feed")
	c := HashString("http://example.com/other")

	if a != b {
		t.Fatalf("HashString not stable across calls: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("HashString collided for distinct inputs: %q", a)
	}
}
