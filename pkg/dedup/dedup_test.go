package dedup_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teneolabs/teneo-go/pkg/dedup"
)

// movableClock is a mutex-guarded fake time source.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *movableClock {
	return &movableClock{now: time.Unix(1700000000, 0)}
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSeen(t *testing.T) {
	t.Parallel()

	t.Run("second observation within TTL is a duplicate", func(t *testing.T) {
		t.Parallel()

		c := dedup.New(time.Minute, 10)
		assert.False(t, c.Seen("m-1"))
		assert.True(t, c.Seen("m-1"))
		assert.Equal(t, uint64(1), c.Hits())
	})

	t.Run("distinct ids are independent", func(t *testing.T) {
		t.Parallel()

		c := dedup.New(time.Minute, 10)
		assert.False(t, c.Seen("m-1"))
		assert.False(t, c.Seen("m-2"))
		assert.Equal(t, 2, c.Len())
	})

	t.Run("expired id reads as unseen and restarts its window", func(t *testing.T) {
		t.Parallel()

		clock := newClock()
		c := dedup.New(time.Minute, 10, dedup.WithClock(clock.Now))

		assert.False(t, c.Seen("m-1"))
		clock.Advance(61 * time.Second)
		assert.False(t, c.Seen("m-1"), "TTL elapsed")
		assert.True(t, c.Seen("m-1"), "window restarted")
	})
}

func TestEviction(t *testing.T) {
	t.Parallel()

	t.Run("full cache evicts the oldest insertion", func(t *testing.T) {
		t.Parallel()

		c := dedup.New(time.Minute, 3)
		for i := 1; i <= 3; i++ {
			c.Seen(fmt.Sprintf("m-%d", i))
		}
		c.Seen("m-4")

		assert.Equal(t, 3, c.Len())
		assert.False(t, c.Contains("m-1"), "oldest evicted")
		assert.True(t, c.Contains("m-4"))
	})

	t.Run("size never exceeds capacity", func(t *testing.T) {
		t.Parallel()

		c := dedup.New(time.Minute, 5)
		for i := range 50 {
			c.Seen(fmt.Sprintf("m-%d", i))
			assert.LessOrEqual(t, c.Len(), 5)
		}
	})
}

func TestContains(t *testing.T) {
	t.Parallel()

	clock := newClock()
	c := dedup.New(time.Minute, 10, dedup.WithClock(clock.Now))

	assert.False(t, c.Contains("m-1"))
	c.Seen("m-1")
	assert.True(t, c.Contains("m-1"))

	clock.Advance(2 * time.Minute)
	assert.False(t, c.Contains("m-1"), "expired entries read as absent")
}

func TestClear(t *testing.T) {
	t.Parallel()

	c := dedup.New(time.Minute, 10)
	c.Seen("m-1")
	c.Seen("m-2")
	c.Clear()

	assert.Zero(t, c.Len())
	assert.False(t, c.Seen("m-1"), "cleared ids start fresh")
}

func TestInvalidConfigPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { dedup.New(0, 10) })
	assert.Panics(t, func() { dedup.New(time.Minute, 0) })
}
