package webhook

import "errors"

// Stable error identities for delivery classification. Permanent errors
// are never retried; temporary ones are, subject to the breaker.
var (
	ErrDeliveryFailed   = errors.New("webhook delivery failed")
	ErrPermanentFailure = errors.New("permanent webhook failure")
	ErrTemporaryFailure = errors.New("temporary webhook failure")
	ErrCircuitOpen      = errors.New("webhook circuit breaker is open")
	ErrInvalidURL       = errors.New("invalid webhook URL")
	ErrForbiddenURL     = errors.New("webhook URL targets a forbidden address")
	ErrTimeout          = errors.New("webhook request timeout")
	ErrDisabled         = errors.New("webhook dispatcher is disabled")
	ErrNotConfigured    = errors.New("webhook URL is not configured")
)

// IsPermanent reports whether err should never be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure) || errors.Is(err, ErrForbiddenURL) || errors.Is(err, ErrInvalidURL)
}
