package transport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/transport"
)

func TestPendingTable_ResolveByRequestID(t *testing.T) {
	t.Parallel()

	table := transport.NewPendingTable(nil)
	p := table.Add("req-1", "general", false)

	resp := &protocol.AgentResponse{TaskID: "t-1", Content: "pong"}
	require.True(t, table.ResolveByRequestID("req-1", resp))

	got, err := p.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", got.Content)
	assert.Zero(t, table.Len())
}

func TestPendingTable_ResolveByBoundTask(t *testing.T) {
	t.Parallel()

	table := transport.NewPendingTable(nil)
	p := table.Add("req-1", "general", false)

	require.True(t, table.BindTask("req-1", "t-7"))
	require.True(t, table.ResolveByTaskID("t-7", &protocol.AgentResponse{TaskID: "t-7"}))

	got, err := p.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "t-7", got.TaskID)
}

func TestPendingTable_ExactlyOneOutcome(t *testing.T) {
	t.Parallel()

	table := transport.NewPendingTable(nil)
	p := table.Add("req-1", "", false)

	require.True(t, table.ResolveByRequestID("req-1", &protocol.AgentResponse{Content: "first"}))
	assert.False(t, table.ResolveByRequestID("req-1", &protocol.AgentResponse{Content: "second"}))
	assert.False(t, table.Fail("req-1", transport.ErrTimeout))

	got, err := p.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content)
}

func TestPendingTable_WaitTimeout(t *testing.T) {
	t.Parallel()

	table := transport.NewPendingTable(nil)
	p := table.Add("req-1", "", false)

	_, err := p.Wait(context.Background(), 20*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Zero(t, table.Len())

	// A late reply after the timeout finds no slot.
	assert.False(t, table.ResolveByRequestID("req-1", &protocol.AgentResponse{}))
}

func TestPendingTable_Fallback(t *testing.T) {
	t.Parallel()

	t.Run("matches oldest pending on room", func(t *testing.T) {
		t.Parallel()

		table := transport.NewPendingTable(nil)
		first := table.Add("req-1", "general", false)
		table.Add("req-2", "general", false)

		require.True(t, table.ResolveFallback("general", "0xagent", "0xself", &protocol.AgentResponse{Content: "hi"}))

		got, err := first.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "hi", got.Content)
		assert.Equal(t, 1, table.Len(), "only the oldest match resolves")
	})

	t.Run("skips explicit-agent requests", func(t *testing.T) {
		t.Parallel()

		table := transport.NewPendingTable(nil)
		table.Add("req-1", "general", true)

		assert.False(t, table.ResolveFallback("general", "0xagent", "0xself", &protocol.AgentResponse{}))
	})

	t.Run("ignores replies from self", func(t *testing.T) {
		t.Parallel()

		table := transport.NewPendingTable(nil)
		table.Add("req-1", "general", false)

		assert.False(t, table.ResolveFallback("general", "0xSELF", "0xself", &protocol.AgentResponse{}))
	})

	t.Run("requires the same room", func(t *testing.T) {
		t.Parallel()

		table := transport.NewPendingTable(nil)
		table.Add("req-1", "general", false)

		assert.False(t, table.ResolveFallback("other", "0xagent", "0xself", &protocol.AgentResponse{}))
	})
}

func TestPendingTable_FailAll(t *testing.T) {
	t.Parallel()

	table := transport.NewPendingTable(nil)

	var wg sync.WaitGroup
	results := make([]error, 3)
	for i, id := range []string{"req-1", "req-2", "req-3"} {
		p := table.Add(id, "", false)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = p.Wait(context.Background(), time.Second)
		}()
	}

	table.FailAll(transport.ErrConnectionLost)
	wg.Wait()

	for _, err := range results {
		assert.ErrorIs(t, err, transport.ErrConnectionLost)
	}
	assert.Zero(t, table.Len())
}

func TestPendingTable_ContextCancel(t *testing.T) {
	t.Parallel()

	table := transport.NewPendingTable(nil)
	p := table.Add("req-1", "", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
