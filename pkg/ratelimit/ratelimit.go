package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Config defines the token bucket parameters.
type Config struct {
	RefillRate float64 // Tokens added per second
	Capacity   int     // Maximum tokens the bucket can hold (burst limit)
}

func (c Config) validate() error {
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %v", ErrInvalidConfig, c.RefillRate)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	return nil
}

// Limiter is an in-process token bucket guarding the outbound send path.
// The bucket starts full and refills continuously at the configured rate.
// Safe for concurrent use. Tokens do not persist across process lifetimes.
type Limiter struct {
	config Config

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	rejected   uint64
	now        func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a token bucket limiter. The bucket starts at capacity.
func New(config Config, opts ...Option) (*Limiter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		config: config,
		tokens: float64(config.Capacity),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.now()
	return l, nil
}

// TryAcquire consumes one token if available. It never blocks; callers
// translate a false result into a rate-limit error without queueing.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens < 1 {
		l.rejected++
		return false
	}
	l.tokens--
	return true
}

// Tokens returns the number of whole tokens currently available.
func (l *Limiter) Tokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return int(l.tokens)
}

// Rejected returns how many acquisitions have been refused so far.
func (l *Limiter) Rejected() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejected
}

// Must be called with lock held.
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens = min(l.tokens+elapsed*l.config.RefillRate, float64(l.config.Capacity))
	l.lastRefill = now
}
