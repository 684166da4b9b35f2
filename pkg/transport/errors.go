package transport

import "errors"

// Stable error identities surfaced by the session. Callers classify with
// errors.Is; the facade wraps them into its public error kinds.
var (
	ErrNotConnected       = errors.New("not connected")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrConnectionLost     = errors.New("connection lost")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrTimeout            = errors.New("operation timed out")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrClosed             = errors.New("session is closed")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrServerError        = errors.New("server reported an error")
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")
)
