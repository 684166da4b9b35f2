package secret

import "errors"

var (
	ErrInvalidScalar = errors.New("invalid signing scalar: must be 32 bytes")
	ErrSealFailed    = errors.New("sealing secret failed")
	ErrOpenFailed    = errors.New("opening secret failed")
	ErrDestroyed     = errors.New("secret has been destroyed")
)
