// Package command implements the Command Interpreter (C10): recognizing
// bot mentions, dispatching the rss/sub/unsub/reg verbs, and replying in
// the originating channel.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/ksbot/internal/domain"
	"github.com/alanyoungcy/ksbot/internal/feed"
	"github.com/alanyoungcy/ksbot/internal/metrics"
	"github.com/alanyoungcy/ksbot/internal/pipeline"
)

// urlPattern is the first-https-or-http-url extractor required by §4.10.
var urlPattern = regexp.MustCompile(`https?://[\w\./:\-$&#]+`)

// ExtractURL returns the first URL embedded in s, per P7.
func ExtractURL(s string) (string, bool) {
	m := urlPattern.FindString(s)
	if m == "" {
		return "", false
	}
	return m, true
}

// Sender is the subset of the KOOK client the interpreter needs to reply.
type Sender interface {
	SendMessage(ctx context.Context, channelID, content, quote string) error
}

// Puller is the subset of internal/feed.Fetcher the interpreter needs for
// the "sub" verb's immediate pull.
type Puller interface {
	Pull(ctx context.Context, url string) (*feed.ParsedFeed, error)
}

const helpText = "可用命令: rss | sub <url> | unsub <url> | reg <url> <pattern>"

// Interpreter dispatches incoming channel messages to the verb table in
// §4.10. BotID is set once, after the orchestrator's first successful
// get_self() call, via SetBotID -- until then every message is ignored
// (the bot cannot yet recognize its own mention).
type Interpreter struct {
	store       domain.SubscriptionStore
	fetcher     Puller
	pusher      *pipeline.Pusher
	sender      Sender
	staleCutoff time.Duration
	logger      *slog.Logger
	now         func() time.Time
	metrics     *metrics.Metrics

	mu    sync.RWMutex
	botID string
}

func New(store domain.SubscriptionStore, fetcher Puller, pusher *pipeline.Pusher, sender Sender, staleCutoff time.Duration, m *metrics.Metrics, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		store:       store,
		fetcher:     fetcher,
		pusher:      pusher,
		sender:      sender,
		staleCutoff: staleCutoff,
		logger:      logger.With(slog.String("component", "command")),
		now:         time.Now,
		metrics:     m,
	}
}

// SetBotID records the bot's own user id, used to recognize its mention.
func (ip *Interpreter) SetBotID(id string) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.botID = id
}

func (ip *Interpreter) botMention() string {
	ip.mu.RLock()
	defer ip.mu.RUnlock()
	if ip.botID == "" {
		return ""
	}
	return fmt.Sprintf("(met)%s(met)", ip.botID)
}

// Handle applies the §4.10 message filters, recognizes a command, and
// dispatches it. A nil return means either the message was filtered out
// or the command succeeded; a non-nil error is reported back to the user
// by the caller as a one-line quoted reply (§4.11).
func (ip *Interpreter) Handle(ctx context.Context, msg *domain.EventMessage) error {
	if !ip.admissible(msg) {
		return nil
	}

	mention := ip.botMention()
	if mention == "" {
		return nil
	}

	trimmed := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(trimmed, mention) {
		return nil
	}

	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, mention))
	tokens := tokenize(rest)

	if len(tokens) == 0 {
		return ip.reply(ctx, msg, helpText)
	}

	verb, args := tokens[0], tokens[1:]
	ip.metrics.IncCommand(verb)
	switch verb {
	case "rss":
		return ip.handleRSS(ctx, msg)
	case "sub":
		if len(args) != 1 {
			return ip.reply(ctx, msg, "用法: sub <url>")
		}
		return ip.handleSub(ctx, msg, args[0])
	case "unsub":
		if len(args) != 1 {
			return ip.reply(ctx, msg, "用法: unsub <url>")
		}
		return ip.handleUnsub(ctx, msg, args[0])
	case "reg":
		if len(args) != 2 {
			return ip.reply(ctx, msg, "用法: reg <url> <pattern>")
		}
		return ip.handleReg(ctx, msg, args[0], args[1])
	default:
		return ip.reply(ctx, msg, helpText)
	}
}

// admissible applies P8 (stale drop) and the bot/direct-message filters,
// per §4.10.
func (ip *Interpreter) admissible(msg *domain.EventMessage) bool {
	if msg.Bot {
		return false
	}
	if msg.ChannelType == "PERSON" {
		return false
	}
	if ip.isStale(msg) {
		return false
	}
	return true
}

func (ip *Interpreter) isStale(msg *domain.EventMessage) bool {
	sent := time.UnixMilli(msg.MsgTimestamp)
	return sent.Before(ip.now().Add(-ip.staleCutoff))
}

func tokenize(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (ip *Interpreter) reply(ctx context.Context, msg *domain.EventMessage, content string) error {
	return ip.sender.SendMessage(ctx, msg.TargetID, content, msg.MsgID)
}

func (ip *Interpreter) handleRSS(ctx context.Context, msg *domain.EventMessage) error {
	feeds, err := ip.store.ChannelFeeds(ctx, msg.TargetID)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	if len(feeds) == 0 {
		return ip.reply(ctx, msg, "当前没有订阅")
	}

	var b strings.Builder
	for _, f := range feeds {
		title := f.Title
		if title == "" {
			title = f.SubscribeURL
		}
		fmt.Fprintf(&b, "%s: %s\n", title, f.SubscribeURL)
	}
	return ip.reply(ctx, msg, strings.TrimRight(b.String(), "\n"))
}

func (ip *Interpreter) handleSub(ctx context.Context, msg *domain.EventMessage, arg string) error {
	subURL, ok := ExtractURL(arg)
	if !ok {
		return ip.reply(ctx, msg, "无效的链接")
	}

	parsed, err := ip.fetcher.Pull(ctx, subURL)
	if err != nil {
		return fmt.Errorf("pulling feed: %w", err)
	}

	f := domain.FromFetch(subURL, parsed.Link, parsed.Title, parsed.TTLMinutes, parsed.Posts, ip.now().Unix(), nil)
	if err := ip.store.Subscribe(ctx, msg.TargetID, f); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	if err := ip.reply(ctx, msg, "已订阅: "+subURL); err != nil {
		return err
	}

	if len(f.Posts) > 0 {
		ip.pusher.Push(ctx, f, f.Posts[0])
	}
	return nil
}

func (ip *Interpreter) handleUnsub(ctx context.Context, msg *domain.EventMessage, arg string) error {
	subURL, ok := ExtractURL(arg)
	if !ok {
		return ip.reply(ctx, msg, "无效的链接")
	}

	if err := ip.store.Unsubscribe(ctx, msg.TargetID, subURL); err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	if _, err := ip.store.TryRemoveFeed(ctx, subURL); err != nil {
		ip.logger.Warn("garbage collecting feed", slog.String("feed", subURL), slog.Any("error", err))
	}

	return ip.reply(ctx, msg, "已退订: "+subURL)
}

func (ip *Interpreter) handleReg(ctx context.Context, msg *domain.EventMessage, urlArg, pattern string) error {
	subURL, ok := ExtractURL(urlArg)
	if !ok {
		return ip.reply(ctx, msg, "无效的链接")
	}

	if _, err := regexp.Compile(pattern); err != nil {
		return ip.reply(ctx, msg, "正则表达式无效: "+err.Error())
	}

	if err := ip.store.SetRegex(ctx, msg.TargetID, subURL, pattern); err != nil {
		return fmt.Errorf("storing filter: %w", err)
	}

	return ip.reply(ctx, msg, "已设置过滤规则")
}
