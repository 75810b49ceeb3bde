package domain

// Channel is the per-channel subscription record: the set of feed
// fingerprints this channel follows, and an optional title-filter pattern
// per feed (empty pattern means no filter).
type Channel struct {
	ID         string
	FeedHash   map[string]struct{}
	FeedRegex  map[string]string
}

// NewChannel returns an empty Channel record for id, created lazily on
// first subscribe per the data model's lifecycle rules.
func NewChannel(id string) *Channel {
	return &Channel{
		ID:        id,
		FeedHash:  map[string]struct{}{},
		FeedRegex: map[string]string{},
	}
}
