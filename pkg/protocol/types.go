package protocol

import "time"

// Agent statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Capability describes something an agent can do.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Command is a direct-invocation trigger exposed by an agent.
type Command struct {
	Trigger     string `json:"trigger"`
	Argument    string `json:"argument,omitempty"`
	Description string `json:"description,omitempty"`
}

// Agent is a server-side worker as described by the coordinator.
type Agent struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Status       string       `json:"status"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Commands     []Command    `json:"commands,omitempty"`
	Room         string       `json:"room,omitempty"`
	AgentType    string       `json:"agent_type,omitempty"`
}

// Room is coordinator room metadata, seeded during authentication and
// refreshed by list_rooms responses.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	IsPublic    bool   `json:"is_public,omitempty"`
	Description string `json:"description,omitempty"`
}

// AgentResponse is the application-level form of a task_response frame.
type AgentResponse struct {
	TaskID      string    `json:"task_id"`
	AgentID     string    `json:"agent_id"`
	AgentName   string    `json:"agent_name,omitempty"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Raw         *Message  `json:"-"`
	Humanized   string    `json:"humanized"`
}
