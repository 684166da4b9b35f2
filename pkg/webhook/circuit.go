package webhook

import (
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows deliveries to pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects all deliveries.
	CircuitOpen
	// CircuitHalfOpen permits a single probe to test recovery.
	CircuitHalfOpen
)

// String returns the wire representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker protects the webhook endpoint from sustained failure.
// It opens after a run of consecutive failures, rejects deliveries until
// the recovery timeout elapses, then permits exactly one probe at a time
// until enough consecutive successes close it again. Safe for concurrent
// use.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	state         CircuitState
	failures      int
	successes     int
	lastFailure   time.Time
	probeInFlight bool
	now           func() time.Time
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock overrides the time source, for deterministic tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// NewCircuitBreaker creates a breaker. Non-positive arguments fall back
// to the defaults: 5 failures to open, 2 successes to close, 60s
// recovery timeout.
func NewCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}

	cb := &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            CircuitClosed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a delivery attempt may execute. In OPEN it
// transitions to HALF_OPEN once the recovery timeout has elapsed and
// admits the single probe; further attempts are rejected until the probe
// resolves.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.recoveryTimeout {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			cb.probeInFlight = true
			return true
		}
		return false

	case CircuitHalfOpen:
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful delivery and may close the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0

	case CircuitHalfOpen:
		cb.probeInFlight = false
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure records a failed delivery and may open the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = CircuitOpen
		}

	case CircuitHalfOpen:
		// The probe failed; reopen and restart the recovery timeout.
		cb.state = CircuitOpen
		cb.failures = cb.failureThreshold
		cb.successes = 0
		cb.probeInFlight = false
	}
}

// State returns the state as it would be observed by the next Allow call.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) > cb.recoveryTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset returns the breaker to CLOSED with all counters cleared.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.probeInFlight = false
	cb.lastFailure = time.Time{}
}
