package logger

import (
	"log/slog"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// MessageType records a wire frame type under the key "message_type".
func MessageType(t string) slog.Attr {
	return slog.String("message_type", t)
}

// MessageID records the message identifier under the key "message_id".
// Empty ids produce an empty Attr.
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// RequestID records the client request identifier under the key
// "request_id". Empty ids produce an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// TaskID records a coordinator task identifier under the key "task_id".
// Empty ids produce an empty Attr.
func TaskID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("task_id", id)
}

// AgentID records an agent identifier under the key "agent_id".
func AgentID(id string) slog.Attr {
	return slog.String("agent_id", id)
}

// Room records a room identifier under the key "room".
func Room(id string) slog.Attr {
	return slog.String("room", id)
}

// Address records a wallet address under the key "address".
func Address(addr string) slog.Attr {
	return slog.String("address", addr)
}

// Attempt records a retry or reconnect attempt number under the key
// "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
