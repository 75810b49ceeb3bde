package domain

// PostsHashLimit is N from the data model: a feed snapshot retains the
// stable hashes of only its most recent N posts, trimmed to the first N
// of the latest fetch.
const PostsHashLimit = 16

// Post is one entry in a feed, merged from either an RSS <item> or an Atom
// <entry>. Fields are optional because source feeds vary in what they
// supply.
type Post struct {
	Title       string
	Link        string
	PubDate     string
	GUID        string
	Description string
	Author      string
	Category    []string
}

// Feed is the durable per-URL record described in the data model: identity,
// display fields, the trimmed posts_hash fingerprint sequence used for
// diffing, and the set of channels currently subscribed.
type Feed struct {
	SubscribeURL string
	Link         string
	Title        string
	TTLMinutes   int
	DownTime     int64
	PostsHash    []string
	ChannelIDs   map[string]struct{}
	Posts        []Post
}

// Hash returns the stable fingerprint used as this feed's key in the store,
// hash(subscribe_url).
func (f *Feed) Hash() string {
	return HashString(f.SubscribeURL)
}

// FromFetch builds a new Feed snapshot from a freshly pulled set of posts,
// preserving the prior snapshot's channel_ids (subscribe/unsubscribe is the
// only thing allowed to change channel membership) and trimming the post
// hash sequence to PostsHashLimit, in the feed's own (newest-first) order.
func FromFetch(subscribeURL, link, title string, ttlMinutes int, posts []Post, downTime int64, prior *Feed) *Feed {
	// Posts and PostsHash are kept in lockstep: only posts with a link
	// participate in diffing (a linkless post can never be pushed per
	// §4.9, so it has no fingerprint), and both are trimmed to the same
	// prefix of PostsHashLimit entries in the feed's own order.
	linked := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.Link == "" {
			continue
		}
		linked = append(linked, p)
	}
	if len(linked) > PostsHashLimit {
		linked = linked[:PostsHashLimit]
	}

	hashes := make([]string, len(linked))
	for i, p := range linked {
		hashes[i] = HashString(p.Link)
	}

	channelIDs := map[string]struct{}{}
	if prior != nil {
		for id := range prior.ChannelIDs {
			channelIDs[id] = struct{}{}
		}
	}

	return &Feed{
		SubscribeURL: subscribeURL,
		Link:         link,
		Title:        title,
		TTLMinutes:   ttlMinutes,
		DownTime:     downTime,
		PostsHash:    hashes,
		ChannelIDs:   channelIDs,
		Posts:        linked,
	}
}

// DiffPostIndices returns the indices into new's post sequence whose hash is
// not present in old's hash sequence -- the "new relative to old" set P6
// requires. A nil old is treated as an empty prior snapshot, so every post
// is considered new.
func DiffPostIndices(newFeed, old *Feed) []int {
	oldSet := map[string]struct{}{}
	if old != nil {
		for _, h := range old.PostsHash {
			oldSet[h] = struct{}{}
		}
	}

	var indices []int
	for i, h := range newFeed.PostsHash {
		if _, ok := oldSet[h]; !ok {
			indices = append(indices, i)
		}
	}
	return indices
}
