// Package protocol defines the WebSocket envelopes exchanged between the chat
// client and the chat server. Every frame is a JSON object carrying a "type"
// discriminator; frames that are not JSON are surfaced as raw text so the
// caller can render them instead of failing.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeMessage = "message"
	TypeTyping  = "typing"
	TypePing    = "ping"
	TypePong    = "pong"
)

// Server -> Client message types. The server reuses message, typing and ping.
const (
	TypeOnlineUsers = "online_users"
)

// ---------------------------------------------------------------------------
// Envelope is used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct. A JSON
// object without a type is accepted and yields an empty Type.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	e.Type = partial.Type
	return nil
}

// Frame is the result of parsing one inbound WebSocket payload. Exactly one
// of the two variants is set: a decoded Envelope, or the raw text when the
// payload was not a JSON object.
type Frame struct {
	Envelope Envelope
	Text     string
	isText   bool
}

// IsText reports whether the frame is the raw-text variant.
func (f Frame) IsText() bool { return f.isText }

// ParseEnvelope parses an inbound payload. Payloads that do not decode as a
// JSON object come back as the raw-text variant rather than as an error.
func ParseEnvelope(data []byte) Frame {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{Text: string(data), isText: true}
	}
	return Frame{Envelope: env}
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// ChatMsg is a chat message sent by the client. Image carries an inline data
// URL and is omitted for text messages.
type ChatMsg struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	IsSticker bool   `json:"isSticker"`
	Image     string `json:"image,omitempty"`
}

// TypingMsg indicates whether the client is currently composing.
type TypingMsg struct {
	Type   string `json:"type"`
	Typing bool   `json:"typing"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// PongMsg answers a server ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// ServerChatMsg is a chat message relayed by the server.
type ServerChatMsg struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Image     string    `json:"image,omitempty"`
	IsSticker bool      `json:"isSticker,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

// ServerTypingMsg relays another user's typing indicator. A missing typing
// field means the user started typing.
type ServerTypingMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Typing   *bool  `json:"typing,omitempty"`
}

// IsTyping reports the effective typing state.
func (m ServerTypingMsg) IsTyping() bool {
	return m.Typing == nil || *m.Typing
}

// OnlineUsersMsg carries the complete roster of connected users.
type OnlineUsersMsg struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// ServerPingMsg is a server-initiated keepalive that must be answered with a
// pong.
type ServerPingMsg struct {
	Type string `json:"type"`
}

// Timestamp accepts either an RFC 3339 string or unix milliseconds. A missing
// or unparseable value leaves the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return nil
	}
	if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		t.Time = time.UnixMilli(ms)
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseServerMessage decodes an envelope into its typed server message. It
// returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown types.
func ParseServerMessage(env Envelope) (string, interface{}, error) {
	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeMessage:
		var m ServerChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m ServerTypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeOnlineUsers:
		var m OnlineUsersMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m ServerPingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePong:
		var m PongMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown server message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewClientMessage creates a JSON-encoded byte slice for a client message.
// The msgType is injected into the payload under the "type" key, overriding
// whatever the payload carried.
func NewClientMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal client message: %w", err)
	}
	return out, nil
}
