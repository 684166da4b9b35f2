package transport

import (
	"time"

	"github.com/teneolabs/teneo-go/pkg/protocol"
)

// Phase is the authentication state machine position of the session.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseAwaitingAuth
	PhaseSigning
	PhaseAwaitingAuthResult
	PhaseAuthenticated
	PhaseFailed
)

// String returns the wire representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "DISCONNECTED"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseAwaitingAuth:
		return "AWAITING_AUTH"
	case PhaseSigning:
		return "SIGNING"
	case PhaseAwaitingAuthResult:
		return "AWAITING_AUTH_RESULT"
	case PhaseAuthenticated:
		return "AUTHENTICATED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ConnectionState is a point-in-time view of the socket lifecycle.
type ConnectionState struct {
	Connected         bool      `json:"connected"`
	Authenticated     bool      `json:"authenticated"`
	Reconnecting      bool      `json:"reconnecting"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	LastConnectedAt   time.Time `json:"last_connected_at,omitzero"`
	LastError         string    `json:"last_error,omitempty"`
}

// AuthState is a point-in-time view of the authenticated identity. It is
// reset on disconnect and repopulated on each successful authentication.
type AuthState struct {
	Authenticated bool            `json:"authenticated"`
	ClientID      string          `json:"client_id,omitempty"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	IsWhitelisted bool            `json:"is_whitelisted"`
	IsAdmin       bool            `json:"is_admin"`
	NFTVerified   bool            `json:"nft_verified"`
	Rooms         []string        `json:"rooms,omitempty"`
	RoomObjects   []protocol.Room `json:"room_objects,omitempty"`
	PrivateRoomID string          `json:"private_room_id,omitempty"`
	Challenge     string          `json:"challenge,omitempty"`
}

// ReconnectingEvent is the payload of connection:reconnecting events.
type ReconnectingEvent struct {
	Attempt int           `json:"attempt"`
	Delay   time.Duration `json:"delay"`
}

// DuplicateEvent is the payload of message:duplicate events.
type DuplicateEvent struct {
	ID   string               `json:"id"`
	Type protocol.MessageType `json:"type"`
}

// SignatureEvent is the payload of signature:* events.
type SignatureEvent struct {
	Type    protocol.MessageType `json:"type"`
	ID      string               `json:"id,omitempty"`
	Address string               `json:"address,omitempty"`
	Reason  string               `json:"reason,omitempty"`
}
