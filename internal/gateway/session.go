package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/ksbot/internal/domain"
	"github.com/alanyoungcy/ksbot/internal/metrics"
	"github.com/alanyoungcy/ksbot/internal/platform/kook"
)

// state is one node of the Session State Machine (C5), per §4.5.
type state int

const (
	stateGetGateway state = iota
	stateConnectGateway
	stateResume
	stateWorking
	stateHeartTimeout
	stateReconnect
)

func (s state) String() string {
	switch s {
	case stateGetGateway:
		return "get_gateway"
	case stateConnectGateway:
		return "connect_gateway"
	case stateResume:
		return "resume"
	case stateWorking:
		return "working"
	case stateHeartTimeout:
		return "heart_timeout"
	case stateReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// errReconnectSignal unwinds the working loop when the server sends a
// Reconnect frame (§4.4 signal 5): the caller must re-fetch a gateway URL
// from scratch with no resume attempt.
var errReconnectSignal = errors.New("gateway: server requested reconnect")

// errHeartTimeout unwinds the working loop after three consecutive missed
// heartbeats (§4.5, §9 resolved at 4s starting timeout).
var errHeartTimeout = errors.New("gateway: heartbeat timed out")

// Config carries the tunables the session machine needs from
// internal/config.GatewayConfig; kept as its own small struct so this
// package never imports internal/config directly.
type Config struct {
	HeartbeatInterval  time.Duration
	RecordSyncInterval time.Duration
	BackoffBase        int
	GatewayRetryDelay  time.Duration
	DialTimeout        time.Duration
}

// Session runs the Session State Machine for one bot identity: it owns the
// WebSocket connection, the Event Ordering Buffer, and the Persistent
// Session Record, and publishes domain events to anyone subscribed via
// Broadcast. Structurally modeled on the reconnecting client in
// internal/platform/polymarket/ws.go, generalized to the gateway's richer
// state machine and numbered-frame resume semantics.
type Session struct {
	client  *kook.Client
	records *RecordStore
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	broadcast *Broadcast
	buffer    *OrderingBuffer
	record    domain.SessionRecord
}

// NewSession constructs a session machine seeded with whatever record was
// recovered from disk at startup (zero value if none).
func NewSession(client *kook.Client, records *RecordStore, initial domain.SessionRecord, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Session {
	return &Session{
		client:    client,
		records:   records,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "gateway")),
		metrics:   m,
		broadcast: NewBroadcast(logger),
		buffer:    NewOrderingBuffer(initial.SN),
		record:    initial,
	}
}

// Subscribe registers a new listener for session events (connects,
// heartbeats, inbound messages). The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	return s.broadcast.Subscribe()
}

// Run drives the state machine until ctx is cancelled and returns only
// ctx's error. A failed gateway lookup is retried after the configured
// retry delay; a failed dial is retried with exponential backoff and falls
// back to gateway lookup after three failures; a dropped connection goes
// straight back to gateway lookup.
func (s *Session) Run(ctx context.Context) error {
	st := stateGetGateway
	if !s.record.IsEmpty() {
		st = stateResume
	}

	var gatewayURL string
	connectFailures := 0
	backoff := NewExponentRegress(s.cfg.BackoffBase)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch st {
		case stateGetGateway, stateReconnect:
			u, err := s.client.GetGateway(ctx)
			if err != nil {
				s.logger.Warn("fetching gateway url failed, retrying", slog.Any("error", err))
				if sleepOrDone(ctx, s.cfg.GatewayRetryDelay) {
					return ctx.Err()
				}
				continue
			}
			gatewayURL = u
			s.record.GatewayURL = u
			st = stateConnectGateway

		case stateResume:
			gatewayURL = appendResumeQuery(s.record)
			st = stateConnectGateway

		case stateConnectGateway, stateHeartTimeout:
			conn, err := s.dial(ctx, gatewayURL)
			if err != nil {
				connectFailures++
				s.logger.Warn("connect attempt failed",
					slog.Int("attempt", connectFailures), slog.Any("error", err))
				if connectFailures >= 3 {
					connectFailures = 0
					st = stateGetGateway
					continue
				}
				if sleepOrDone(ctx, backoff.Get()) {
					return ctx.Err()
				}
				continue
			}

			connectFailures = 0
			backoff.Reset()
			s.metrics.IncGatewayConnect()
			s.broadcast.Publish(domain.SessionEvent{Kind: domain.EventConnected})

			err = s.work(ctx, conn)
			conn.Close()

			switch {
			case errors.Is(err, errReconnectSignal):
				st = stateReconnect
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				s.metrics.IncGatewayReconnect()
				s.logger.Warn("session disconnected, restarting from gateway lookup", slog.Any("error", err))
				st = stateGetGateway
			}

		case stateWorking:
			// unreachable: work() is invoked synchronously from
			// stateConnectGateway/stateHeartTimeout above.
			st = stateGetGateway
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}

func appendResumeQuery(rec domain.SessionRecord) string {
	u, err := url.Parse(rec.GatewayURL)
	if err != nil {
		return rec.GatewayURL
	}
	q := u.Query()
	q.Set("resume", "1")
	q.Set("sn", fmt.Sprintf("%d", rec.SN))
	q.Set("session_id", rec.SessionID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Session) dial(ctx context.Context, gatewayURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout}
	correlationID := uuid.NewString()
	conn, _, err := dialer.DialContext(ctx, gatewayURL, nil)
	if err != nil {
		return nil, domain.Transport("dialing gateway", err)
	}
	s.logger.Info("gateway connected", slog.String("correlation_id", correlationID))
	return conn, nil
}

// work runs the frame dispatch and heartbeat loop for one live connection.
// It returns when the connection drops, the server signals Reconnect
// (errReconnectSignal), or three consecutive heartbeats are missed
// (errHeartTimeout). Exactly one goroutine (readLoop) reads the connection;
// this loop is its sole writer, satisfying the single-owner-per-half rule
// in §5.
func (s *Session) work(ctx context.Context, conn *websocket.Conn) error {
	readCh := make(chan *Frame, 16)
	pongCh := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go readLoop(readCtx, conn, readCh, pongCh, errCh)

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	recordSync := time.NewTicker(s.cfg.RecordSyncInterval)
	defer recordSync.Stop()

	backoff := NewExponentRegress(s.cfg.BackoffBase)
	backoff.Forward(1) // first timeout is base^2 (4s), per P9/§9
	missed := 0
	var timeout *time.Timer
	defer func() {
		if timeout != nil {
			timeout.Stop()
		}
	}()

	for {
		var timeoutC <-chan time.Time
		if timeout != nil {
			timeoutC = timeout.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errCh:
			return domain.Transport("gateway read loop", err)

		case <-heartbeat.C:
			sn := s.buffer.CurrentSN()
			raw, err := EncodePing(sn)
			if err != nil {
				return domain.Protocol("encoding heartbeat ping", err)
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return domain.Transport("writing heartbeat ping", err)
			}
			if timeout != nil {
				timeout.Stop()
			}
			timeout = time.NewTimer(backoff.Get())

		case <-pongCh:
			missed = 0
			backoff.Reset()
			backoff.Forward(1)
			if timeout != nil {
				timeout.Stop()
				timeout = nil
			}
			s.broadcast.Publish(domain.SessionEvent{Kind: domain.EventHeartbeat})

		case <-timeoutC:
			missed++
			timeout = nil
			s.metrics.IncHeartbeatMissed()
			s.logger.Warn("heartbeat missed", slog.Int("consecutive", missed))
			if missed >= 3 {
				return errHeartTimeout
			}

		case <-recordSync.C:
			if err := s.records.Persist(s.record); err != nil {
				s.logger.Error("persisting session record", slog.Any("error", err))
			}

		case frame, ok := <-readCh:
			if !ok {
				return domain.Transport("read loop closed", nil)
			}
			if done, err := s.handleFrame(frame); done {
				return err
			}
		}
	}
}

// handleFrame dispatches one decoded frame per §4.5. done is true when the
// working loop must exit (Reconnect signal); err carries the reason.
func (s *Session) handleFrame(frame *Frame) (done bool, err error) {
	if frame.IsDefault() {
		s.logger.Debug("dropping invalid or keepalive frame")
		return false, nil
	}

	switch frame.S {
	case SignalHello, SignalResumeAck:
		var payload struct {
			SessionID string `json:"session_id"`
		}
		if len(frame.D) > 0 {
			if err := json.Unmarshal(frame.D, &payload); err == nil && payload.SessionID != "" {
				s.record.SessionID = payload.SessionID
			}
		}
		return false, nil

	case SignalReconnect:
		s.record.SN = 0
		s.record.SessionID = ""
		s.record.GatewayURL = ""
		s.buffer.Reset()
		return true, errReconnectSignal

	default:
		if frame.SN == nil {
			s.logger.Debug("ignoring frame with no sn", slog.Int("s", frame.S))
			return false, nil
		}
		sn := *frame.SN
		released := s.buffer.Accept(sn, frame.D)
		for _, payload := range released {
			var msg domain.EventMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				s.logger.Warn("decoding event message", slog.Any("error", err))
				continue
			}
			s.record.SN = s.buffer.CurrentSN()
			s.broadcast.Publish(domain.SessionEvent{Kind: domain.EventMessageReceived, Payload: &msg})
		}
		return false, nil
	}
}

// readLoop is the connection's sole reader. Pong frames are forwarded on
// pongCh (dropped, not blocked, if the receiver is still processing a
// prior one -- a stale pong is worthless once superseded); everything else
// goes to readCh for the working loop to dispatch.
func readLoop(ctx context.Context, conn *websocket.Conn, readCh chan<- *Frame, pongCh chan<- struct{}, errCh chan<- error) {
	for {
		if ctx.Err() != nil {
			return
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case errCh <- err:
			case <-ctx.Done():
			}
			return
		}

		frame, err := DecodeMessage(mt, data)
		if err != nil {
			select {
			case errCh <- err:
			case <-ctx.Done():
			}
			return
		}

		if frame.S == SignalPong {
			select {
			case pongCh <- struct{}{}:
			default:
			}
			continue
		}

		select {
		case readCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}
