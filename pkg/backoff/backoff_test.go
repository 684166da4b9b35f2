package backoff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/backoff"
)

func TestExponential(t *testing.T) {
	t.Parallel()

	t.Run("grows geometrically up to the cap", func(t *testing.T) {
		t.Parallel()

		s := backoff.Exponential{Base: time.Second, Max: 10 * time.Second, Multiplier: 2}
		assert.Equal(t, time.Second, s.NextInterval(1))
		assert.Equal(t, 2*time.Second, s.NextInterval(2))
		assert.Equal(t, 4*time.Second, s.NextInterval(3))
		assert.Equal(t, 8*time.Second, s.NextInterval(4))
		assert.Equal(t, 10*time.Second, s.NextInterval(5), "capped")
		assert.Equal(t, 10*time.Second, s.NextInterval(50), "stays capped")
	})

	t.Run("jitter stays within its bound", func(t *testing.T) {
		t.Parallel()

		s := backoff.Exponential{Base: time.Second, Max: time.Minute, Multiplier: 2, Jitter: 500 * time.Millisecond}
		for range 100 {
			d := s.NextInterval(2)
			assert.GreaterOrEqual(t, d, 2*time.Second)
			assert.Less(t, d, 2*time.Second+500*time.Millisecond)
		}
	})

	t.Run("non-positive attempt yields zero", func(t *testing.T) {
		t.Parallel()

		s := backoff.Exponential{Base: time.Second, Max: time.Minute, Multiplier: 2}
		assert.Zero(t, s.NextInterval(0))
		assert.Zero(t, s.NextInterval(-1))
	})
}

func TestLinear(t *testing.T) {
	t.Parallel()

	s := backoff.Linear{Step: time.Second, Max: 3 * time.Second}
	assert.Equal(t, time.Second, s.NextInterval(1))
	assert.Equal(t, 2*time.Second, s.NextInterval(2))
	assert.Equal(t, 3*time.Second, s.NextInterval(3))
	assert.Equal(t, 3*time.Second, s.NextInterval(10), "capped")
	assert.Zero(t, s.NextInterval(0))
}

func TestConstant(t *testing.T) {
	t.Parallel()

	s := backoff.Constant{Interval: 250 * time.Millisecond}
	assert.Equal(t, 250*time.Millisecond, s.NextInterval(1))
	assert.Equal(t, 250*time.Millisecond, s.NextInterval(99))
	assert.Zero(t, s.NextInterval(0))
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	t.Run("webhook retry", func(t *testing.T) {
		t.Parallel()

		s, ok := backoff.Default().(backoff.Exponential)
		require.True(t, ok)
		assert.Equal(t, time.Second, s.Base)
		assert.Equal(t, 30*time.Second, s.Max)
	})

	t.Run("reconnect", func(t *testing.T) {
		t.Parallel()

		s, ok := backoff.DefaultReconnect().(backoff.Exponential)
		require.True(t, ok)
		assert.Equal(t, 3*time.Second, s.Base)
		assert.Equal(t, 2*time.Minute, s.Max)
		assert.Equal(t, 2.5, s.Multiplier)
		assert.Equal(t, time.Second, s.Jitter)

		// First retry waits at least the base and at most base + jitter.
		d := s.NextInterval(1)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.Less(t, d, 4*time.Second)
	})
}
