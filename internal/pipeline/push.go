// Package pipeline wires the feed fetch/diff/push cycle (C9) and the
// top-level service orchestration (C11) together.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/alanyoungcy/ksbot/internal/domain"
	"github.com/alanyoungcy/ksbot/internal/metrics"
)

// MessageSender is the subset of the KOOK client the pusher needs, kept
// narrow so push.go can be tested without a real platform client.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, content, quote string) error
}

// Pusher formats newly-diffed posts and dispatches them to every channel
// subscribed to a feed, honoring each channel's optional per-feed regex
// filter. The regex cache is a field on Pusher, not a package global, per
// the §9 redesign flag.
type Pusher struct {
	store   domain.SubscriptionStore
	sender  MessageSender
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	regex map[string]*regexp.Regexp
}

func NewPusher(store domain.SubscriptionStore, sender MessageSender, m *metrics.Metrics, logger *slog.Logger) *Pusher {
	return &Pusher{
		store:   store,
		sender:  sender,
		logger:  logger.With(slog.String("component", "pusher")),
		metrics: m,
		regex:   map[string]*regexp.Regexp{},
	}
}

// Push delivers post to every channel subscribed to feed, except a channel
// whose filter (if any) matches the post's title -- a match suppresses
// delivery, per P7/scenario 6 and original_source/src/push.rs's
// is_filter_post.
func (p *Pusher) Push(ctx context.Context, feed *domain.Feed, post domain.Post) {
	channels, err := p.store.FeedChannels(ctx, feed.SubscribeURL)
	if err != nil {
		p.logger.Error("listing channels for feed", slog.String("feed", feed.SubscribeURL), slog.Any("error", err))
		return
	}

	content := formatPost(post)

	for _, ch := range channels {
		re, err := p.compiledFilter(ctx, ch.ID, feed.SubscribeURL)
		if err != nil {
			p.logger.Warn("invalid stored regex, pushing unfiltered",
				slog.String("channel", ch.ID), slog.Any("error", err))
		} else if re != nil && re.MatchString(post.Title) {
			continue
		}

		if err := p.sender.SendMessage(ctx, ch.ID, content, ""); err != nil {
			p.logger.Error("sending post",
				slog.String("channel", ch.ID), slog.String("feed", feed.SubscribeURL), slog.Any("error", err))
			continue
		}
		p.metrics.IncPostsPushed()
	}
}

func (p *Pusher) compiledFilter(ctx context.Context, channelID, subscribeURL string) (*regexp.Regexp, error) {
	pattern, err := p.store.Regex(ctx, channelID, subscribeURL)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, nil
	}

	key := channelID + "::" + subscribeURL

	p.mu.Lock()
	defer p.mu.Unlock()

	if re, ok := p.regex[key]; ok && re.String() == pattern {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p.regex[key] = re
	return re, nil
}

// formatPost renders a post as a bold title with a blockquoted link,
// KOOK's Markdown message format.
func formatPost(post domain.Post) string {
	if post.Title == "" {
		return fmt.Sprintf("> %s", post.Link)
	}
	return fmt.Sprintf("**%s**\n> %s", post.Title, post.Link)
}
