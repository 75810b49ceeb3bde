package domain

import "context"

// SubscriptionStore is the durable, bidirectional channel<->feed mapping
// (C3). Implementations must make each operation atomic at its own record
// granularity and tolerate concurrent writers; see §4.3 for the full
// contract.
type SubscriptionStore interface {
	// Subscribe is idempotent: it ensures both the feed and channel records
	// exist, then adds the cross references required by invariant F1.
	Subscribe(ctx context.Context, channelID string, feed *Feed) error

	// Unsubscribe removes both cross references; idempotent, tolerates
	// either side already being absent.
	Unsubscribe(ctx context.Context, channelID, subscribeURL string) error

	// TryRemoveFeed removes the feed record only if it has no remaining
	// subscribed channels, returning whether a removal happened.
	TryRemoveFeed(ctx context.Context, subscribeURL string) (bool, error)

	// UpdateOrCreateFeed replaces a feed snapshot wholesale and returns the
	// prior snapshot (nil if none existed) for diffing.
	UpdateOrCreateFeed(ctx context.Context, feed *Feed) (*Feed, error)

	// ListFeeds returns every feed snapshot currently stored.
	ListFeeds(ctx context.Context) ([]*Feed, error)

	// ChannelFeeds returns the feeds a channel is subscribed to.
	ChannelFeeds(ctx context.Context, channelID string) ([]*Feed, error)

	// FeedChannels returns the channels subscribed to a feed URL.
	FeedChannels(ctx context.Context, subscribeURL string) ([]*Channel, error)

	// SetRegex persists a compiled-verified title filter pattern for a
	// channel/feed pair. An empty pattern removes the entry.
	SetRegex(ctx context.Context, channelID, subscribeURL, pattern string) error

	// Regex returns the filter pattern for a channel/feed pair, or "" if
	// none is set.
	Regex(ctx context.Context, channelID, subscribeURL string) (string, error)

	Close() error
}
