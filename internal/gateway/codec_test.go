package gateway

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDecodeMessageText(t *testing.T) {
	sn := uint64(7)
	raw, _ := json.Marshal(Frame{S: SignalEvent, SN: &sn})

	f, err := DecodeMessage(websocket.TextMessage, raw)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if f.S != SignalEvent || f.SN == nil || *f.SN != sn {
		t.Fatalf("decoded frame = %+v, want s=%d sn=%d", f, SignalEvent, sn)
	}
}

func TestDecodeMessageBinaryInflatesZlib(t *testing.T) {
	sn := uint64(9)
	payload, _ := json.Marshal(Frame{S: SignalEvent, SN: &sn})

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}

	f, err := DecodeMessage(websocket.BinaryMessage, buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if f.SN == nil || *f.SN != sn {
		t.Fatalf("decoded frame sn = %v, want %d", f.SN, sn)
	}
}

func TestDecodeMessagePingPongIsDefaultFrame(t *testing.T) {
	f, err := DecodeMessage(websocket.PingMessage, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !f.IsDefault() {
		t.Fatalf("ping frame = %+v, want default", f)
	}
}

func TestDecodeMessageCloseIsTerminal(t *testing.T) {
	if _, err := DecodeMessage(websocket.CloseMessage, nil); err == nil {
		t.Fatal("DecodeMessage(Close) returned nil error, want errClosed")
	}
}

func TestEncodePingRoundTrips(t *testing.T) {
	raw, err := EncodePing(42)
	if err != nil {
		t.Fatalf("EncodePing: %v", err)
	}

	f, err := decodeJSON(raw)
	if err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	if f.S != SignalPing || f.SN == nil || *f.SN != 42 {
		t.Fatalf("decoded ping = %+v, want s=%d sn=42", f, SignalPing)
	}
}
