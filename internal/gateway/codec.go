// Package gateway implements the session side of the bot: the Wire Codec
// (C4), Session State Machine (C5), Event Ordering Buffer (C6), and
// Persistent Session Record (C7).
package gateway

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

// Signal values for the `s` field of a wire frame, per §4.4.
const (
	SignalEvent      = 0
	SignalHello      = 1
	SignalPing       = 2
	SignalPong       = 3
	SignalResume     = 4
	SignalReconnect  = 5
	SignalResumeAck  = 6
)

// Frame is the wire shape {s, d?, sn?}.
type Frame struct {
	S  int             `json:"s"`
	D  json.RawMessage `json:"d,omitempty"`
	SN *uint64         `json:"sn,omitempty"`
}

// IsDefault reports whether the frame carries none of its fields -- the
// "invalid frame" case dropped with a debug log per §4.5. Native WebSocket
// ping/pong frames decode to this.
func (f *Frame) IsDefault() bool {
	return f.S == 0 && len(f.D) == 0 && f.SN == nil
}

// errClosed marks a WebSocket Close frame as the terminal transport error
// it is per §4.4/§7.
var errClosed = fmt.Errorf("gateway: connection closed")

// DecodeMessage turns one inbound WebSocket message into a Frame. Binary
// messages are zlib-deflated JSON and are transparently inflated; text
// messages are parsed directly; native ping/pong frames produce an
// all-default Frame (dropped by the caller); Close is a terminal error.
func DecodeMessage(messageType int, data []byte) (*Frame, error) {
	switch messageType {
	case websocket.TextMessage:
		return decodeJSON(data)
	case websocket.BinaryMessage:
		raw, err := inflate(data)
		if err != nil {
			return nil, fmt.Errorf("gateway: inflating binary frame: %w", err)
		}
		return decodeJSON(raw)
	case websocket.PingMessage, websocket.PongMessage:
		return &Frame{}, nil
	case websocket.CloseMessage:
		return nil, errClosed
	default:
		return &Frame{}, nil
	}
}

func decodeJSON(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("gateway: decoding frame json: %w", err)
	}
	return &f, nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// EncodePing builds the client->server Ping frame carrying the current sn.
func EncodePing(sn uint64) ([]byte, error) {
	return json.Marshal(Frame{S: SignalPing, SN: &sn})
}

// EncodeResume builds the client->server Resume frame.
func EncodeResume(sn uint64) ([]byte, error) {
	return json.Marshal(Frame{S: SignalResume, SN: &sn})
}
