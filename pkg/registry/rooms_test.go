package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/registry"
)

func TestRoomRegistry(t *testing.T) {
	t.Parallel()

	t.Run("set and look up rooms", func(t *testing.T) {
		t.Parallel()

		r := registry.NewRoomRegistry()
		r.SetRooms([]protocol.Room{
			{ID: "r-1", Name: "general"},
			{ID: "r-2", Name: "support"},
		})

		rooms := r.Rooms()
		require.Len(t, rooms, 2)

		room, ok := r.Room("r-2")
		require.True(t, ok)
		assert.Equal(t, "support", room.Name)

		_, ok = r.Room("r-9")
		assert.False(t, ok)
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		t.Parallel()

		r := registry.NewRoomRegistry()
		r.SetRooms([]protocol.Room{{ID: "r-1", Name: "general"}})

		rooms := r.Rooms()
		rooms[0].Name = "mutated"
		fresh, ok := r.Room("r-1")
		require.True(t, ok)
		assert.Equal(t, "general", fresh.Name)
	})

	t.Run("subscriptions replace wholesale", func(t *testing.T) {
		t.Parallel()

		r := registry.NewRoomRegistry()
		r.SetSubscriptions([]string{"r-1", "r-2"})
		assert.ElementsMatch(t, []string{"r-1", "r-2"}, r.Subscribed())
		assert.True(t, r.IsSubscribed("r-1"))

		r.SetSubscriptions([]string{"r-2"})
		assert.Equal(t, []string{"r-2"}, r.Subscribed())
		assert.False(t, r.IsSubscribed("r-1"))
	})

	t.Run("private room id", func(t *testing.T) {
		t.Parallel()

		r := registry.NewRoomRegistry()
		assert.Empty(t, r.PrivateRoomID())
		r.SetPrivateRoomID("pr-1")
		assert.Equal(t, "pr-1", r.PrivateRoomID())
	})

	t.Run("clear resets everything", func(t *testing.T) {
		t.Parallel()

		r := registry.NewRoomRegistry()
		r.SetRooms([]protocol.Room{{ID: "r-1"}})
		r.SetSubscriptions([]string{"r-1"})
		r.SetPrivateRoomID("pr-1")

		r.Clear()
		assert.Empty(t, r.Rooms())
		assert.Empty(t, r.Subscribed())
		assert.Empty(t, r.PrivateRoomID())
	})
}
