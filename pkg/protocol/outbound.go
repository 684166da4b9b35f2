package protocol

import (
	"encoding/json"
	"time"
)

func mustData(v any) json.RawMessage {
	// The outbound payload structs below marshal unconditionally.
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func stamp() int64 {
	return time.Now().UnixMilli()
}

// NewAuth builds the auth response to a challenge: the address, the hex
// signature, the exact signed string, and the client role.
func NewAuth(address, signature, signedMessage, clientType string) *Message {
	return &Message{
		Type: TypeAuth,
		Data: mustData(struct {
			Address    string `json:"address"`
			Signature  string `json:"signature"`
			Message    string `json:"message"`
			ClientType string `json:"client_type"`
		}{address, signature, signedMessage, clientType}),
		Timestamp: stamp(),
	}
}

// NewRequestChallenge asks the server to issue an authentication
// challenge, for deployments that do not push one unprompted.
func NewRequestChallenge() *Message {
	return &Message{Type: TypeRequestChallenge, Timestamp: stamp()}
}

// NewChat builds a coordinator-routed message. The request id is stamped
// into data for reply correlation; target optionally names an agent.
func NewChat(content, contentType, room, requestID, target string) *Message {
	return &Message{
		Type:        TypeMessage,
		Room:        room,
		Content:     content,
		ContentType: contentType,
		Data: mustData(struct {
			ClientRequestID string `json:"client_request_id,omitempty"`
			Target          string `json:"target,omitempty"`
		}{requestID, target}),
		Timestamp: stamp(),
	}
}

// NewTask builds a direct-command frame for an explicit agent target.
func NewTask(agent, command, room, requestID string) *Message {
	return &Message{
		Type: TypeTask,
		Room: room,
		Data: mustData(struct {
			Agent           string `json:"agent"`
			Command         string `json:"command"`
			ClientRequestID string `json:"client_request_id,omitempty"`
		}{agent, command, requestID}),
		Timestamp: stamp(),
	}
}

// NewSubscribe builds a room subscription request.
func NewSubscribe(roomID string) *Message {
	return &Message{
		Type: TypeSubscribe,
		Data: mustData(struct {
			RoomID string `json:"room_id"`
		}{roomID}),
		Timestamp: stamp(),
	}
}

// NewUnsubscribe builds a room unsubscription request.
func NewUnsubscribe(roomID string) *Message {
	return &Message{
		Type: TypeUnsubscribe,
		Data: mustData(struct {
			RoomID string `json:"room_id"`
		}{roomID}),
		Timestamp: stamp(),
	}
}

// NewListRooms builds a room listing request.
func NewListRooms() *Message {
	return &Message{Type: TypeListRooms, Data: json.RawMessage(`{}`), Timestamp: stamp()}
}

// NewPing builds an application-level ping frame.
func NewPing() *Message {
	return &Message{Type: TypePing, Timestamp: stamp()}
}

// NewPong builds an application-level pong frame.
func NewPong() *Message {
	return &Message{Type: TypePong, Timestamp: stamp()}
}
