// Package gateway implements the duplex frame protocol server: challenge
// event, connect/health/status/send/agent methods, broadcast events, the
// connect handler's three acceptance paths, and the inbound processor,
// grounded on original_source's crates/lib/src/gateway/{server,protocol}.rs
// and the teacher's websocket-handler idiom.
package gateway

import "encoding/json"

// Protocol is the server's protocol version; connect negotiates
// min(client.maxProtocol, Protocol).
const Protocol = 1

// NewSessionTrigger is the case-insensitive trimmed text that causes the
// inbound processor to rebind a conversation onto a fresh session.
const NewSessionTrigger = "/new"

// FrameType discriminates the three wire frame shapes.
type FrameType string

const (
	FrameRequest  FrameType = "req"
	FrameResponse FrameType = "res"
	FrameEvent    FrameType = "event"
)

// RequestFrame is a client-to-server call.
type RequestFrame struct {
	Type   FrameType       `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame answers a RequestFrame by id.
type ResponseFrame struct {
	Type    FrameType `json:"type"`
	ID      string    `json:"id"`
	OK      bool      `json:"ok"`
	Payload any       `json:"payload,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// EventFrame is an unsolicited server-to-client push.
type EventFrame struct {
	Type    FrameType `json:"type"`
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
}

func okResponse(id string, payload any) ResponseFrame {
	return ResponseFrame{Type: FrameResponse, ID: id, OK: true, Payload: payload}
}

func errResponse(id string, err error) ResponseFrame {
	return ResponseFrame{Type: FrameResponse, ID: id, OK: false, Error: err.Error()}
}

func newEvent(event string, payload any) EventFrame {
	return EventFrame{Type: FrameEvent, Event: event, Payload: payload}
}
