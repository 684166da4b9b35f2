package ratelimit

import "errors"

var ErrInvalidConfig = errors.New("invalid rate limiter configuration")
