package kook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.DiscardHandler)
	c := New(srv.URL, "test-token", time.Millisecond, time.Second, logger)
	t.Cleanup(c.Close)
	return c
}

func TestGetGatewayReturnsURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != gatewayPath {
			t.Errorf("path = %q, want %q", r.URL.Path, gatewayPath)
		}
		if r.Header.Get("Authorization") != "Bot test-token" {
			t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]string{"url": "wss://example.com/ws"},
		})
	})

	url, err := c.GetGateway(context.Background())
	if err != nil {
		t.Fatalf("GetGateway: %v", err)
	}
	if url != "wss://example.com/ws" {
		t.Fatalf("url = %q, want wss://example.com/ws", url)
	}
}

func TestDoReturnsProtocolErrorOnNonZeroCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    40001,
			"message": "bad token",
		})
	})

	if _, err := c.GetGateway(context.Background()); err == nil {
		t.Fatal("GetGateway with a non-zero envelope code returned nil error")
	}
}

func TestSendMessageEncodesNonceAndContent(t *testing.T) {
	var gotBody sendMessageRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != messagePath {
			t.Errorf("path = %q, want %q", r.URL.Path, messagePath)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0})
	})

	if err := c.SendMessage(context.Background(), "chan1", "hello", ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotBody.TargetID != "chan1" || gotBody.Content != "hello" {
		t.Fatalf("gotBody = %+v, want TargetID=chan1 Content=hello", gotBody)
	}
	if gotBody.Nonce == "" {
		t.Fatal("gotBody.Nonce is empty, want a generated nonce")
	}
}
