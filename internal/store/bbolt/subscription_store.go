package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

// Store implements domain.SubscriptionStore. regexCache holds compiled
// patterns keyed by the channel/feed pair they filter, owned by the store
// rather than a package-level global, per the redesign flag on shared
// mutable state.
type Store struct {
	db         *bolt.DB
	mu         sync.Mutex
	regexCache map[string]*regexp.Regexp
}

func (s *Store) init() {
	if s.regexCache == nil {
		s.regexCache = map[string]*regexp.Regexp{}
	}
}

// feedRecord is the on-disk shape of a Feed snapshot.
type feedRecord struct {
	SubscribeURL string        `json:"subscribe_url"`
	Link         string        `json:"link"`
	Title        string        `json:"title"`
	TTLMinutes   int           `json:"ttl_minutes"`
	DownTime     int64         `json:"down_time"`
	PostsHash    []string      `json:"posts_hash"`
	Posts        []domain.Post `json:"posts"`
	ChannelIDs   []string      `json:"channel_ids"`
}

func toFeedRecord(f *domain.Feed) feedRecord {
	ids := make([]string, 0, len(f.ChannelIDs))
	for id := range f.ChannelIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return feedRecord{
		SubscribeURL: f.SubscribeURL,
		Link:         f.Link,
		Title:        f.Title,
		TTLMinutes:   f.TTLMinutes,
		DownTime:     f.DownTime,
		PostsHash:    f.PostsHash,
		Posts:        f.Posts,
		ChannelIDs:   ids,
	}
}

func (r feedRecord) toDomain() *domain.Feed {
	ids := map[string]struct{}{}
	for _, id := range r.ChannelIDs {
		ids[id] = struct{}{}
	}
	return &domain.Feed{
		SubscribeURL: r.SubscribeURL,
		Link:         r.Link,
		Title:        r.Title,
		TTLMinutes:   r.TTLMinutes,
		DownTime:     r.DownTime,
		PostsHash:    r.PostsHash,
		Posts:        r.Posts,
		ChannelIDs:   ids,
	}
}

// channelRecord is the on-disk shape of a Channel record.
type channelRecord struct {
	ID        string            `json:"id"`
	FeedHash  []string          `json:"feed_hash"`
	FeedRegex map[string]string `json:"feed_regex"`
}

func toChannelRecord(c *domain.Channel) channelRecord {
	hashes := make([]string, 0, len(c.FeedHash))
	for h := range c.FeedHash {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return channelRecord{ID: c.ID, FeedHash: hashes, FeedRegex: c.FeedRegex}
}

func (r channelRecord) toDomain() *domain.Channel {
	hashes := map[string]struct{}{}
	for _, h := range r.FeedHash {
		hashes[h] = struct{}{}
	}
	regex := r.FeedRegex
	if regex == nil {
		regex = map[string]string{}
	}
	return &domain.Channel{ID: r.ID, FeedHash: hashes, FeedRegex: regex}
}

func getFeed(tx *bolt.Tx, hash string) (*domain.Feed, error) {
	raw := tx.Bucket(feedBucket).Get([]byte(hash))
	if raw == nil {
		return nil, nil
	}
	var rec feedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("bbolt: decode feed %s: %w", hash, err)
	}
	return rec.toDomain(), nil
}

func putFeed(tx *bolt.Tx, f *domain.Feed) error {
	raw, err := json.Marshal(toFeedRecord(f))
	if err != nil {
		return fmt.Errorf("bbolt: encode feed %s: %w", f.SubscribeURL, err)
	}
	return tx.Bucket(feedBucket).Put([]byte(f.Hash()), raw)
}

func getChannel(tx *bolt.Tx, id string) (*domain.Channel, error) {
	raw := tx.Bucket(channelBucket).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	var rec channelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("bbolt: decode channel %s: %w", id, err)
	}
	return rec.toDomain(), nil
}

func putChannel(tx *bolt.Tx, c *domain.Channel) error {
	raw, err := json.Marshal(toChannelRecord(c))
	if err != nil {
		return fmt.Errorf("bbolt: encode channel %s: %w", c.ID, err)
	}
	return tx.Bucket(channelBucket).Put([]byte(c.ID), raw)
}

// Subscribe ensures both the feed and channel records exist, then adds the
// cross references required by invariant F1. Both writes happen inside a
// single bbolt transaction, so F1's two updates commit atomically at the
// store's record granularity -- a reader never observes one written
// without the other.
func (s *Store) Subscribe(ctx context.Context, channelID string, feed *domain.Feed) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		existing, err := getFeed(tx, feed.Hash())
		if err != nil {
			return err
		}
		if existing == nil {
			existing = feed
			existing.ChannelIDs = map[string]struct{}{}
		}
		existing.ChannelIDs[channelID] = struct{}{}
		if err := putFeed(tx, existing); err != nil {
			return err
		}

		ch, err := getChannel(tx, channelID)
		if err != nil {
			return err
		}
		if ch == nil {
			ch = domain.NewChannel(channelID)
		}
		ch.FeedHash[feed.Hash()] = struct{}{}
		return putChannel(tx, ch)
	})
}

// Unsubscribe removes both cross references. Idempotent: a missing side is
// treated as already removed, never an error.
func (s *Store) Unsubscribe(ctx context.Context, channelID, subscribeURL string) error {
	hash := domain.HashString(subscribeURL)
	return s.db.Update(func(tx *bolt.Tx) error {
		if f, err := getFeed(tx, hash); err != nil {
			return err
		} else if f != nil {
			delete(f.ChannelIDs, channelID)
			if err := putFeed(tx, f); err != nil {
				return err
			}
		}

		if ch, err := getChannel(tx, channelID); err != nil {
			return err
		} else if ch != nil {
			delete(ch.FeedHash, hash)
			delete(ch.FeedRegex, hash)
			if err := putChannel(tx, ch); err != nil {
				return err
			}
		}
		return nil
	})
}

// TryRemoveFeed removes the feed record only if it has no remaining
// subscribed channels.
func (s *Store) TryRemoveFeed(ctx context.Context, subscribeURL string) (bool, error) {
	hash := domain.HashString(subscribeURL)
	var removed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		f, err := getFeed(tx, hash)
		if err != nil {
			return err
		}
		if f == nil || len(f.ChannelIDs) > 0 {
			return nil
		}
		removed = true
		return tx.Bucket(feedBucket).Delete([]byte(hash))
	})
	if err != nil {
		return false, fmt.Errorf("bbolt: try remove feed %s: %w", subscribeURL, err)
	}
	return removed, nil
}

// UpdateOrCreateFeed replaces a feed snapshot wholesale and returns the
// prior snapshot for diffing.
func (s *Store) UpdateOrCreateFeed(ctx context.Context, feed *domain.Feed) (*domain.Feed, error) {
	var prior *domain.Feed
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		prior, err = getFeed(tx, feed.Hash())
		if err != nil {
			return err
		}
		return putFeed(tx, feed)
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt: update feed %s: %w", feed.SubscribeURL, err)
	}
	return prior, nil
}

// ListFeeds scans the entire feed bucket.
func (s *Store) ListFeeds(ctx context.Context) ([]*domain.Feed, error) {
	var feeds []*domain.Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(feedBucket).ForEach(func(k, v []byte) error {
			var rec feedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("bbolt: decode feed %s: %w", k, err)
			}
			feeds = append(feeds, rec.toDomain())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return feeds, nil
}

// ChannelFeeds follows a channel's feed_hash cross references.
func (s *Store) ChannelFeeds(ctx context.Context, channelID string) ([]*domain.Feed, error) {
	var feeds []*domain.Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		ch, err := getChannel(tx, channelID)
		if err != nil || ch == nil {
			return err
		}
		for hash := range ch.FeedHash {
			f, err := getFeed(tx, hash)
			if err != nil {
				return err
			}
			if f != nil {
				feeds = append(feeds, f)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt: channel feeds %s: %w", channelID, err)
	}
	return feeds, nil
}

// FeedChannels follows a feed's channel_ids cross references.
func (s *Store) FeedChannels(ctx context.Context, subscribeURL string) ([]*domain.Channel, error) {
	hash := domain.HashString(subscribeURL)
	var channels []*domain.Channel
	err := s.db.View(func(tx *bolt.Tx) error {
		f, err := getFeed(tx, hash)
		if err != nil || f == nil {
			return err
		}
		for id := range f.ChannelIDs {
			ch, err := getChannel(tx, id)
			if err != nil {
				return err
			}
			if ch != nil {
				channels = append(channels, ch)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt: feed channels %s: %w", subscribeURL, err)
	}
	return channels, nil
}

// SetRegex validates and persists a per-channel title filter for a feed. An
// empty pattern removes the entry. The compiled pattern is cached for
// CompiledRegex; the push pipeline keeps its own cache on the Pusher.
func (s *Store) SetRegex(ctx context.Context, channelID, subscribeURL, pattern string) error {
	hash := domain.HashString(subscribeURL)

	s.mu.Lock()
	s.init()
	cacheKey := channelID + "::" + hash
	if pattern == "" {
		delete(s.regexCache, cacheKey)
	} else {
		re, err := regexp.Compile(pattern)
		if err != nil {
			s.mu.Unlock()
			return domain.User(fmt.Sprintf("invalid filter pattern %q", pattern), err)
		}
		s.regexCache[cacheKey] = re
	}
	s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		ch, err := getChannel(tx, channelID)
		if err != nil {
			return err
		}
		if ch == nil {
			ch = domain.NewChannel(channelID)
		}
		if pattern == "" {
			delete(ch.FeedRegex, hash)
		} else {
			ch.FeedRegex[hash] = pattern
		}
		return putChannel(tx, ch)
	})
}

// Regex returns the filter pattern set for a channel/feed pair, or "".
func (s *Store) Regex(ctx context.Context, channelID, subscribeURL string) (string, error) {
	hash := domain.HashString(subscribeURL)
	var pattern string
	err := s.db.View(func(tx *bolt.Tx) error {
		ch, err := getChannel(tx, channelID)
		if err != nil || ch == nil {
			return err
		}
		pattern = ch.FeedRegex[hash]
		return nil
	})
	return pattern, err
}

// CompiledRegex returns the cached compiled pattern for a channel/feed
// pair, compiling and caching it lazily if a pattern is on record but not
// yet cached (e.g. right after process restart).
func (s *Store) CompiledRegex(ctx context.Context, channelID, subscribeURL string) (*regexp.Regexp, error) {
	hash := domain.HashString(subscribeURL)
	cacheKey := channelID + "::" + hash

	s.mu.Lock()
	s.init()
	if re, ok := s.regexCache[cacheKey]; ok {
		s.mu.Unlock()
		return re, nil
	}
	s.mu.Unlock()

	pattern, err := s.Regex(ctx, channelID, subscribeURL)
	if err != nil || pattern == "" {
		return nil, err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, domain.User(fmt.Sprintf("invalid filter pattern %q", pattern), err)
	}

	s.mu.Lock()
	s.regexCache[cacheKey] = re
	s.mu.Unlock()
	return re, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
