package queue_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/queue"
)

func TestBounded(t *testing.T) {
	t.Parallel()

	t.Run("fifo order", func(t *testing.T) {
		t.Parallel()

		q := queue.NewBounded[int](10)
		for i := 1; i <= 3; i++ {
			assert.False(t, q.Push(i))
		}

		for want := 1; want <= 3; want++ {
			got, ok := q.Pop()
			require.True(t, ok)
			assert.Equal(t, want, got)
		}

		_, ok := q.Pop()
		assert.False(t, ok, "empty queue")
	})

	t.Run("overflow drops the oldest", func(t *testing.T) {
		t.Parallel()

		q := queue.NewBounded[string](2)
		q.Push("a")
		q.Push("b")
		assert.True(t, q.Push("c"))

		assert.Equal(t, 2, q.Len())
		assert.Equal(t, uint64(1), q.Dropped())

		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, "b", got, "oldest was discarded")
	})

	t.Run("length never exceeds capacity", func(t *testing.T) {
		t.Parallel()

		q := queue.NewBounded[int](4)
		for i := range 20 {
			q.Push(i)
			assert.LessOrEqual(t, q.Len(), 4)
		}
		assert.Equal(t, uint64(16), q.Dropped())
	})

	t.Run("clear empties and reports the count", func(t *testing.T) {
		t.Parallel()

		q := queue.NewBounded[int](10)
		q.Push(1)
		q.Push(2)
		assert.Equal(t, 2, q.Clear())
		assert.Zero(t, q.Len())
	})

	t.Run("concurrent pushes stay within bounds", func(t *testing.T) {
		t.Parallel()

		q := queue.NewBounded[int](8)
		var wg sync.WaitGroup
		for w := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 100 {
					q.Push(w*100 + i)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 8, q.Len())
	})

	t.Run("zero capacity panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { queue.NewBounded[int](0) })
	})
}
