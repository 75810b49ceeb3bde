package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ksbot/internal/domain"
	"github.com/alanyoungcy/ksbot/internal/platform/kook"
)

// Runner is anything with a cooperative, ctx-driven run loop: the session
// machine and the scheduler both satisfy this.
type Runner interface {
	Run(ctx context.Context) error
}

// SelfGetter fetches the bot's own identity, called once per connection.
type SelfGetter interface {
	GetSelf(ctx context.Context) (*kook.BotIdentity, error)
}

// CommandHandler dispatches one inbound chat message, per C10.
type CommandHandler interface {
	Handle(ctx context.Context, msg *domain.EventMessage) error
	SetBotID(id string)
}

// EventSource is the subset of *gateway.Session the orchestrator needs.
type EventSource interface {
	Subscribe() (<-chan domain.SessionEvent, func())
}

// Orchestrator is the Bot Orchestrator (C11): it owns the session machine
// and the scheduler as concurrent tasks under one errgroup, subscribes to
// the session's event broadcast, and routes each event per §4.11.
// Structurally modeled on this same file's prior trading-domain
// orchestrator: one errgroup, one goroutine per long-lived sub-system, any
// non-context error cancels the group.
type Orchestrator struct {
	session   Runner
	events    EventSource
	scheduler Runner
	client    SelfGetter
	commands  CommandHandler
	sender    MessageSender
	logger    *slog.Logger
}

func NewOrchestrator(
	session Runner,
	events EventSource,
	scheduler Runner,
	client SelfGetter,
	commands CommandHandler,
	sender MessageSender,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		session:   session,
		events:    events,
		scheduler: scheduler,
		client:    client,
		commands:  commands,
		sender:    sender,
		logger:    logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts the session machine, the scheduler, and the event dispatch
// loop as three goroutines under one errgroup. A clean ctx cancellation
// yields a nil error from Run; any other failure in one sub-system
// cancels the rest and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("bot orchestrator starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.session.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("session: %w", err)
	})

	g.Go(func() error {
		err := o.scheduler.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("scheduler: %w", err)
	})

	g.Go(func() error {
		err := o.dispatch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dispatch: %w", err)
	})

	if err := g.Wait(); err != nil {
		o.logger.Error("bot orchestrator stopped with error", slog.Any("error", err))
		return err
	}

	o.logger.Info("bot orchestrator stopped cleanly")
	return nil
}

// dispatch subscribes to the session's event broadcast and routes each
// event per §4.11: Connected triggers one get_self() call to learn (and
// cache, via commands.SetBotID) the bot's own id; Event(msg) runs the
// command interpreter, replying with a one-line error on failure;
// Heartbeat is a no-op; Shutdown drains.
func (o *Orchestrator) dispatch(ctx context.Context) error {
	events, unsubscribe := o.events.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			switch ev.Kind {
			case domain.EventConnected:
				identity, err := o.client.GetSelf(ctx)
				if err != nil {
					o.logger.Error("fetching bot identity", slog.Any("error", err))
					continue
				}
				o.commands.SetBotID(identity.ID)

			case domain.EventHeartbeat:
				// no-op, per §4.11

			case domain.EventMessageReceived:
				if ev.Payload == nil {
					continue
				}
				if err := o.commands.Handle(ctx, ev.Payload); err != nil {
					o.logger.Warn("command handling failed", slog.Any("error", err))
					if sendErr := o.sender.SendMessage(ctx, ev.Payload.TargetID, "错误: "+err.Error(), ev.Payload.MsgID); sendErr != nil {
						o.logger.Error("replying with error", slog.Any("error", sendErr))
					}
				}

			case domain.EventShutdown:
				return nil
			}
		}
	}
}
