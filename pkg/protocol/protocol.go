package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageType tags a wire frame. The inbound set is closed; unknown tags
// are ignored by the dispatcher rather than treated as errors.
type MessageType string

// Inbound message types.
const (
	TypeChallenge     MessageType = "challenge"
	TypeAuth          MessageType = "auth"
	TypeAuthSuccess   MessageType = "auth_success"
	TypeAuthError     MessageType = "auth_error"
	TypeAuthRequired  MessageType = "auth_required"
	TypeAgents        MessageType = "agents"
	TypeAgentSelected MessageType = "agent_selected"
	TypeTaskResponse  MessageType = "task_response"
	TypeMessage       MessageType = "message"
	TypeSubscribe     MessageType = "subscribe"
	TypeUnsubscribe   MessageType = "unsubscribe"
	TypeListRooms     MessageType = "list_rooms"
	TypeError         MessageType = "error"
	TypePing          MessageType = "ping"
	TypePong          MessageType = "pong"
)

// Outbound-only message types.
const (
	TypeRequestChallenge MessageType = "request_challenge"
	TypeTask             MessageType = "task"
)

// Client roles forwarded in the auth frame. The value is opaque to the
// client; unknown roles are passed through unchanged.
const (
	ClientTypeUser        = "user"
	ClientTypeAgent       = "agent"
	ClientTypeCoordinator = "coordinator"
)

// ChallengePrefix is prepended to the server challenge before signing.
// The signed string is transmitted verbatim in the auth frame.
const ChallengePrefix = "Teneo authentication challenge: "

// MaxMessageSize is the maximum accepted inbound frame size in bytes.
const MaxMessageSize = 2 << 20 // 2 MiB

// Message is the JSON envelope carried by every text frame.
type Message struct {
	Type        MessageType     `json:"type"`
	ID          string          `json:"id,omitempty"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Room        string          `json:"room,omitempty"`
	Content     string          `json:"content,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Signature   string          `json:"signature,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
}

// Parse decodes a raw text frame into a Message. Frames without a type
// tag fail schema validation.
func Parse(raw []byte) (*Message, error) {
	if len(raw) > MaxMessageSize {
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrSchema, MaxMessageSize)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type tag", ErrSchema)
	}
	return &msg, nil
}

// Encode serializes a Message for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// CanonicalBytes returns the serialization a message signature covers: the
// envelope with its signature field cleared, marshaled with the fixed
// field order of the Message struct.
func (m *Message) CanonicalBytes() ([]byte, error) {
	unsigned := *m
	unsigned.Signature = ""
	return json.Marshal(&unsigned)
}

// NewRequestID generates a client request id for reply correlation.
func NewRequestID() string {
	return "req-" + uuid.NewString()
}
