package webhook_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/webhook"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cb := webhook.NewCircuitBreaker(5, 2, time.Minute)

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
		assert.Equal(t, webhook.CircuitClosed, cb.State(), "failure %d must not open the circuit", i+1)
	}

	cb.RecordFailure()
	assert.Equal(t, webhook.CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	t.Parallel()

	cb := webhook.NewCircuitBreaker(3, 2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, webhook.CircuitClosed, cb.State(), "non-consecutive failures must not open")

	cb.RecordFailure()
	assert.Equal(t, webhook.CircuitOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	cb := webhook.NewCircuitBreaker(1, 2, time.Minute, webhook.WithBreakerClock(clock))
	cb.RecordFailure()
	require.Equal(t, webhook.CircuitOpen, cb.State())
	require.False(t, cb.Allow())

	advance(time.Minute + time.Second)
	assert.Equal(t, webhook.CircuitHalfOpen, cb.State())
	assert.True(t, cb.Allow(), "first attempt after recovery is the probe")
	assert.False(t, cb.Allow(), "only one probe may be in flight")
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cb := webhook.NewCircuitBreaker(1, 2, time.Minute, webhook.WithBreakerClock(func() time.Time { return now }))
	cb.RecordFailure()

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, webhook.CircuitHalfOpen, cb.State(), "one success is not enough to close")

	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, webhook.CircuitClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cb := webhook.NewCircuitBreaker(2, 2, time.Minute, webhook.WithBreakerClock(func() time.Time { return now }))
	cb.RecordFailure()
	cb.RecordFailure()

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	cb.RecordFailure()

	assert.Equal(t, webhook.CircuitOpen, cb.State())
	assert.False(t, cb.Allow(), "recovery timeout restarts after a failed probe")

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb := webhook.NewCircuitBreaker(1, 1, time.Minute)
	cb.RecordFailure()
	require.Equal(t, webhook.CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, webhook.CircuitClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CLOSED", webhook.CircuitClosed.String())
	assert.Equal(t, "OPEN", webhook.CircuitOpen.String())
	assert.Equal(t, "HALF_OPEN", webhook.CircuitHalfOpen.String())
}
