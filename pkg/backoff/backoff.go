package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy calculates the delay before a retry attempt.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// NextInterval returns the backoff duration for the given attempt.
	// Attempt starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// Exponential grows the delay geometrically up to a cap, with optional
// additive jitter to spread simultaneous retries.
type Exponential struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     time.Duration // Uniform random addition in [0, Jitter)
}

// NextInterval returns min(Base * Multiplier^(attempt-1), Max) plus jitter.
func (e Exponential) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := e.Base
	if base == 0 {
		base = time.Second
	}
	max := e.Max
	if max == 0 {
		max = 30 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if interval > float64(max) {
		interval = float64(max)
	}

	return time.Duration(interval) + jitter(e.Jitter)
}

// Linear increases the delay by a fixed step per attempt up to a cap.
type Linear struct {
	Step   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// NextInterval returns min(Step * attempt, Max) plus jitter.
func (l Linear) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	step := l.Step
	if step == 0 {
		step = time.Second
	}
	max := l.Max
	if max == 0 {
		max = 30 * time.Second
	}

	delay := step * time.Duration(attempt)
	if delay > max {
		delay = max
	}
	return delay + jitter(l.Jitter)
}

// Constant returns the same delay for every attempt.
type Constant struct {
	Interval time.Duration
	Jitter   time.Duration
}

// NextInterval always returns Interval plus jitter.
func (c Constant) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return c.Interval + jitter(c.Jitter)
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Default returns the retry strategy used for webhook deliveries:
// exponential, 1s base, 30s cap.
func Default() Strategy {
	return Exponential{
		Base:       time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
	}
}

// DefaultReconnect returns the reconnection strategy: exponential, 3s
// base, 2min cap, 2.5x growth, up to 1s of jitter.
func DefaultReconnect() Strategy {
	return Exponential{
		Base:       3 * time.Second,
		Max:        2 * time.Minute,
		Multiplier: 2.5,
		Jitter:     time.Second,
	}
}
