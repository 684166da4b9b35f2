package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/registry"
)

func sampleAgents() []protocol.Agent {
	return []protocol.Agent{
		{
			ID:     "a-1",
			Name:   "Research Agent",
			Status: protocol.StatusOnline,
			Capabilities: []protocol.Capability{
				{Name: "search"},
				{Name: "summarize"},
			},
		},
		{
			ID:     "a-2",
			Name:   "Trading Agent",
			Status: protocol.StatusOnline,
			Capabilities: []protocol.Capability{
				{Name: "trade"},
			},
		},
		{
			ID:     "a-3",
			Name:   "Archive",
			Status: protocol.StatusOffline,
		},
	}
}

func TestReplace(t *testing.T) {
	t.Parallel()

	t.Run("rebuilds the catalog", func(t *testing.T) {
		t.Parallel()

		r := registry.NewAgentRegistry()
		r.Replace(sampleAgents())
		assert.Equal(t, 3, r.Len())

		r.Replace(sampleAgents()[:1])
		assert.Equal(t, 1, r.Len())
		_, ok := r.Get("a-2")
		assert.False(t, ok, "stale agents dropped")
		assert.Empty(t, r.FindByCapability("trade"), "stale index entries dropped")
	})

	t.Run("skips agents without ids", func(t *testing.T) {
		t.Parallel()

		r := registry.NewAgentRegistry()
		r.Replace([]protocol.Agent{{Name: "anon"}, {ID: "a-1", Name: "ok"}})
		assert.Equal(t, 1, r.Len())
	})

	t.Run("fires the change hook", func(t *testing.T) {
		t.Parallel()

		r := registry.NewAgentRegistry()
		calls := 0
		r.SetOnChange(func() { calls++ })
		r.Replace(sampleAgents())
		r.Upsert(protocol.Agent{ID: "a-4", Name: "New", Status: protocol.StatusOnline})
		assert.Equal(t, 2, calls)
	})
}

func TestAll(t *testing.T) {
	t.Parallel()

	r := registry.NewAgentRegistry()
	r.Replace(sampleAgents())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a-1", all[0].ID, "ordered by id")

	// Mutating the returned slice must not affect the registry.
	all[0].Name = "mutated"
	all[0].Capabilities[0].Name = "mutated"
	fresh, ok := r.Get("a-1")
	require.True(t, ok)
	assert.Equal(t, "Research Agent", fresh.Name)
	assert.Equal(t, "search", fresh.Capabilities[0].Name)
}

func TestFindByCapability(t *testing.T) {
	t.Parallel()

	r := registry.NewAgentRegistry()
	r.Replace(sampleAgents())

	got := r.FindByCapability("search")
	require.Len(t, got, 1)
	assert.Equal(t, "a-1", got[0].ID)

	assert.Len(t, r.FindByCapability("SEARCH"), 1, "case-insensitive")
	assert.Empty(t, r.FindByCapability("paint"))
}

func TestFindByName(t *testing.T) {
	t.Parallel()

	r := registry.NewAgentRegistry()
	r.Replace(sampleAgents())

	assert.Len(t, r.FindByName("agent"), 2)
	assert.Len(t, r.FindByName("research"), 1)
	assert.Empty(t, r.FindByName("nonexistent"))
}

func TestFindByStatus(t *testing.T) {
	t.Parallel()

	r := registry.NewAgentRegistry()
	r.Replace(sampleAgents())

	assert.Len(t, r.FindByStatus(protocol.StatusOnline), 2)
	assert.Len(t, r.FindByStatus(protocol.StatusOffline), 1)
}

func TestUpsert(t *testing.T) {
	t.Parallel()

	t.Run("updating reindexes the agent", func(t *testing.T) {
		t.Parallel()

		r := registry.NewAgentRegistry()
		r.Replace(sampleAgents())

		updated := sampleAgents()[0]
		updated.Status = protocol.StatusOffline
		updated.Capabilities = []protocol.Capability{{Name: "translate"}}
		r.Upsert(updated)

		assert.Empty(t, r.FindByCapability("search"), "old index entries removed")
		assert.Len(t, r.FindByCapability("translate"), 1)
		assert.Len(t, r.FindByStatus(protocol.StatusOffline), 2)
		assert.Equal(t, 3, r.Len(), "no duplicate rows")
	})

	t.Run("index results always match the primary map", func(t *testing.T) {
		t.Parallel()

		r := registry.NewAgentRegistry()
		r.Replace(sampleAgents())

		for _, agent := range r.FindByStatus(protocol.StatusOnline) {
			primary, ok := r.Get(agent.ID)
			require.True(t, ok)
			assert.Equal(t, protocol.StatusOnline, primary.Status)
		}
	})
}

func TestClear(t *testing.T) {
	t.Parallel()

	r := registry.NewAgentRegistry()
	r.Replace(sampleAgents())
	r.Clear()

	assert.Zero(t, r.Len())
	assert.Empty(t, r.All())
	assert.Empty(t, r.FindByCapability("search"))
}
