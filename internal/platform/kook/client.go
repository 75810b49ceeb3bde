package kook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

const (
	gatewayPath = "/gateway/index"
	messagePath = "/message/create"
	selfPath    = "/user/me"
)

// Client is the Platform HTTP Client (C1). The minimum inter-request
// spacing (§4.1) is a field on the client value, not a package-level
// singleton, per the redesign flag against global state: every call to
// acquire goes through this client's own spacer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	spacer     *spacer
	logger     *slog.Logger
}

// New creates a Client whose outbound requests are serialized to no
// tighter than `spacing` apart, grounded in
// original_source/src/api/http.rs's req_slow_down ticking a shared
// interval before every request.
func New(baseURL, token string, spacing, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
		spacer:     newSpacer(spacing),
		logger:     logger.With(slog.String("component", "kook-client")),
	}
}

// Close stops the client's background spacer goroutine.
func (c *Client) Close() {
	c.spacer.stop()
}

// GetGateway calls /gateway/index and returns the short-lived WebSocket
// URL.
func (c *Client) GetGateway(ctx context.Context) (string, error) {
	var resp GatewayResponse
	if err := c.do(ctx, http.MethodGet, gatewayPath, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// GetSelf calls /user/me and returns the bot's own identity, cached by the
// orchestrator on Connected to recognize its own mentions.
func (c *Client) GetSelf(ctx context.Context) (*BotIdentity, error) {
	var resp BotIdentity
	if err := c.do(ctx, http.MethodGet, selfPath, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMessage posts a message to a channel, optionally quoting another
// message. A client-generated nonce is attached so KOOK can dedup retried
// sends; this is incidental to the spec, not required by it.
func (c *Client) SendMessage(ctx context.Context, channelID, content, quote string) error {
	body := sendMessageRequest{
		Type:     1,
		TargetID: channelID,
		Content:  content,
		Quote:    quote,
		Nonce:    uuid.NewString(),
	}
	return c.do(ctx, http.MethodPost, messagePath, body, nil)
}

// do performs a single request, applying the global spacing gate,
// authorization header, and envelope decoding. Failure is distinguished
// into transport, non-OK envelope, and decode failure, per §4.1.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if err := c.spacer.wait(ctx); err != nil {
		return domain.Transport("waiting for request slot", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return domain.Transport("encoding request body", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.Transport("building request", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Transport(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Transport("reading response body", err)
	}

	var env struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Protocol(fmt.Sprintf("decoding envelope from %s", path), err)
	}
	if env.Code != 0 {
		return domain.Protocol(fmt.Sprintf("%s returned code %d: %s", path, env.Code, env.Message), nil)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return domain.Protocol(fmt.Sprintf("decoding data from %s", path), err)
		}
	}
	return nil
}
