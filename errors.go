package teneo

import (
	"errors"
	"fmt"

	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/transport"
	"github.com/teneolabs/teneo-go/pkg/webhook"
)

// Code classifies an SDK error.
type Code string

const (
	CodeConnection     Code = "connection"
	CodeAuthentication Code = "authentication"
	CodeTimeout        Code = "timeout"
	CodeValidation     Code = "validation"
	CodeMessage        Code = "message"
	CodeWebhook        Code = "webhook"
	CodeRateLimit      Code = "rate_limit"
	CodeSDK            Code = "sdk"
)

// Error is the classified form every failure crosses the public surface
// in. Recoverable reports whether retrying the operation can succeed
// without reconfiguration.
type Error struct {
	Code        Code
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code) + " error"
	}
	return fmt.Sprintf("%s error: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts the classified form from an error chain.
func AsError(err error) (*Error, bool) {
	var sdkErr *Error
	ok := errors.As(err, &sdkErr)
	return sdkErr, ok
}

// CodeOf returns the classification of err, or CodeSDK when err carries
// none.
func CodeOf(err error) Code {
	if sdkErr, ok := AsError(err); ok {
		return sdkErr.Code
	}
	return CodeSDK
}

func newError(code Code, recoverable bool, err error) *Error {
	return &Error{Code: code, Recoverable: recoverable, Err: err}
}

func validationError(format string, args ...any) *Error {
	return newError(CodeValidation, false, fmt.Errorf(format, args...))
}

// classify maps component sentinels onto the public error kinds. Already
// classified errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return err
	}

	switch {
	case errors.Is(err, transport.ErrAuthFailed):
		return newError(CodeAuthentication, false, err)
	case errors.Is(err, transport.ErrTimeout):
		return newError(CodeTimeout, true, err)
	case errors.Is(err, transport.ErrRateLimited):
		return newError(CodeRateLimit, true, err)
	case errors.Is(err, transport.ErrServerError):
		return newError(CodeMessage, false, err)
	case errors.Is(err, transport.ErrInvalidMessage), errors.Is(err, protocol.ErrSchema):
		return newError(CodeValidation, false, err)
	case errors.Is(err, webhook.ErrInvalidURL), errors.Is(err, webhook.ErrForbiddenURL):
		return newError(CodeWebhook, false, err)
	case errors.Is(err, transport.ErrClosed), errors.Is(err, transport.ErrReconnectExhausted):
		return newError(CodeConnection, false, err)
	case errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrConnectionFailed),
		errors.Is(err, transport.ErrConnectionLost):
		return newError(CodeConnection, true, err)
	default:
		return newError(CodeSDK, false, err)
	}
}
