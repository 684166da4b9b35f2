package events

// Event is a typed tag identifying an SDK event.
type Event string

// Connection lifecycle events.
const (
	ConnectionOpen         Event = "connection:open"
	ConnectionClose        Event = "connection:close"
	ConnectionError        Event = "connection:error"
	ConnectionReconnecting Event = "connection:reconnecting"
	ConnectionReconnected  Event = "connection:reconnected"
	ConnectionState        Event = "connection:state"
)

// Authentication events.
const (
	AuthRequired  Event = "auth:required"
	AuthChallenge Event = "auth:challenge"
	AuthSuccess   Event = "auth:success"
	AuthError     Event = "auth:error"
	AuthState     Event = "auth:state"
)

// Agent events.
const (
	AgentList     Event = "agent:list"
	AgentSelected Event = "agent:selected"
	AgentResponse Event = "agent:response"
)

// Message events.
const (
	MessageSent      Event = "message:sent"
	MessageReceived  Event = "message:received"
	MessageError     Event = "message:error"
	MessageDuplicate Event = "message:duplicate"
)

// Room events.
const (
	RoomSubscribed   Event = "room:subscribed"
	RoomUnsubscribed Event = "room:unsubscribed"
	RoomList         Event = "room:list"
)

// Webhook events.
const (
	WebhookSent    Event = "webhook:sent"
	WebhookSuccess Event = "webhook:success"
	WebhookError   Event = "webhook:error"
	WebhookRetry   Event = "webhook:retry"
)

// Signature verification events.
const (
	SignatureVerified Event = "signature:verified"
	SignatureFailed   Event = "signature:failed"
	SignatureMissing  Event = "signature:missing"
)

// Lifecycle and diagnostic events.
const (
	Ready      Event = "ready"
	Disconnect Event = "disconnect"
	Destroy    Event = "destroy"
	Error      Event = "error"
	Warning    Event = "warning"
)
