package protocol

import (
	"encoding/json"
	"fmt"
)

// ChallengeData carries the authentication nonce.
type ChallengeData struct {
	Challenge string `json:"challenge"`
}

// AuthResult carries the identity fields of an auth / auth_success frame.
type AuthResult struct {
	ID                 string `json:"id,omitempty"`
	Address            string `json:"address,omitempty"`
	CachedAuth         bool   `json:"cached_auth,omitempty"`
	IsWhitelisted      bool   `json:"is_whitelisted,omitempty"`
	IsAdminWhitelisted bool   `json:"is_admin_whitelisted,omitempty"`
	NFTVerified        bool   `json:"nft_verified,omitempty"`
	Rooms              []Room `json:"rooms,omitempty"`
	PrivateRoomID      string `json:"private_room_id,omitempty"`
	Error              string `json:"error,omitempty"`
}

// AgentsData is the authoritative agent list pushed by the coordinator.
type AgentsData struct {
	Agents []Agent `json:"agents"`
}

// AgentSelectedData reports the coordinator's routing decision.
type AgentSelectedData struct {
	AgentID          string   `json:"agent_id"`
	AgentName        string   `json:"agent_name,omitempty"`
	Reasoning        string   `json:"reasoning,omitempty"`
	UserRequest      string   `json:"user_request,omitempty"`
	Command          string   `json:"command,omitempty"`
	CommandReasoning string   `json:"command_reasoning,omitempty"`
	Capabilities     []string `json:"capabilities,omitempty"`
	TaskID           string   `json:"task_id,omitempty"`
	ClientRequestID  string   `json:"client_request_id,omitempty"`
}

// TaskResponseData carries an agent's answer to a routed task.
type TaskResponseData struct {
	TaskID          string `json:"task_id"`
	AgentName       string `json:"agent_name,omitempty"`
	Content         string `json:"content,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
	Success         *bool  `json:"success,omitempty"`
	Error           string `json:"error,omitempty"`
	ClientRequestID string `json:"client_request_id,omitempty"`
}

// SubscriptionAck acknowledges a subscribe or unsubscribe request and
// carries the authoritative subscription set.
type SubscriptionAck struct {
	Success       *bool    `json:"success,omitempty"`
	RoomID        string   `json:"room_id,omitempty"`
	Subscriptions []string `json:"subscriptions,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// RoomListData is the payload of a list_rooms response.
type RoomListData struct {
	Rooms []Room `json:"rooms"`
}

// ServerError is the payload of an error frame.
type ServerError struct {
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ClientRequestID string `json:"client_request_id,omitempty"`
}

// decodeData unmarshals the data object of a frame into dst. A frame with
// no data object yields the zero value.
func decodeData(msg *Message, dst any) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return fmt.Errorf("%w: %s data: %w", ErrSchema, msg.Type, err)
	}
	return nil
}

// DecodeChallenge validates and extracts a challenge frame.
func DecodeChallenge(msg *Message) (*ChallengeData, error) {
	var data ChallengeData
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	if data.Challenge == "" {
		return nil, fmt.Errorf("%w: challenge frame missing challenge value", ErrSchema)
	}
	return &data, nil
}

// DecodeAuthResult extracts the identity fields of an auth-class frame.
func DecodeAuthResult(msg *Message) (*AuthResult, error) {
	var data AuthResult
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAgents validates and extracts an agents frame. Every listed agent
// must carry an id.
func DecodeAgents(msg *Message) (*AgentsData, error) {
	var data AgentsData
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	for i, agent := range data.Agents {
		if agent.ID == "" {
			return nil, fmt.Errorf("%w: agents[%d] missing id", ErrSchema, i)
		}
	}
	return &data, nil
}

// DecodeAgentSelected validates and extracts an agent_selected frame.
func DecodeAgentSelected(msg *Message) (*AgentSelectedData, error) {
	var data AgentSelectedData
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	if data.AgentID == "" {
		return nil, fmt.Errorf("%w: agent_selected missing agent_id", ErrSchema)
	}
	return &data, nil
}

// DecodeTaskResponse extracts a task_response frame. Content may arrive
// inside data or on the envelope; data takes precedence. A response with
// no content at all is still valid, since an agent may answer with
// structured data only.
func DecodeTaskResponse(msg *Message) (*TaskResponseData, error) {
	var data TaskResponseData
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	if data.Content == "" {
		data.Content = msg.Content
	}
	if data.ContentType == "" {
		data.ContentType = msg.ContentType
	}
	return &data, nil
}

// Succeeded reports the success flag, defaulting to true when the server
// omitted it and no error is present.
func (d *TaskResponseData) Succeeded() bool {
	if d.Success != nil {
		return *d.Success
	}
	return d.Error == ""
}

// DecodeSubscriptionAck extracts a subscribe/unsubscribe acknowledgement.
func DecodeSubscriptionAck(msg *Message) (*SubscriptionAck, error) {
	var data SubscriptionAck
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Succeeded reports the ack outcome, defaulting to success when the
// server omitted the flag and reported no error.
func (a *SubscriptionAck) Succeeded() bool {
	if a.Success != nil {
		return *a.Success
	}
	return a.Error == ""
}

// DecodeRoomList extracts a list_rooms response.
func DecodeRoomList(msg *Message) (*RoomListData, error) {
	var data RoomListData
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeServerError extracts an error frame. Codes may arrive as strings
// or numbers; both normalize to a string.
func DecodeServerError(msg *Message) (*ServerError, error) {
	var data struct {
		Code            json.RawMessage `json:"code,omitempty"`
		Message         string          `json:"message,omitempty"`
		Error           string          `json:"error,omitempty"`
		ClientRequestID string          `json:"client_request_id,omitempty"`
	}
	if err := decodeData(msg, &data); err != nil {
		return nil, err
	}
	out := &ServerError{
		Code:            normalizeCode(data.Code),
		Message:         data.Message,
		ClientRequestID: data.ClientRequestID,
	}
	if out.Message == "" {
		out.Message = data.Error
	}
	if out.Message == "" {
		out.Message = msg.Content
	}
	return out, nil
}

func normalizeCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
