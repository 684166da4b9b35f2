package registry

import (
	"sort"
	"sync"

	"github.com/teneolabs/teneo-go/pkg/protocol"
)

// RoomRegistry stores the authoritative room metadata delivered during
// authentication, the current subscribed-room set, and the optional
// private room id. The subscribed set only ever changes from server
// acknowledgements; local subscribe requests never mutate it
// speculatively. Safe for concurrent use.
type RoomRegistry struct {
	mu            sync.RWMutex
	rooms         map[string]protocol.Room
	subscribed    map[string]struct{}
	privateRoomID string
}

// NewRoomRegistry creates an empty room registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:      make(map[string]protocol.Room),
		subscribed: make(map[string]struct{}),
	}
}

// SetRooms replaces the room metadata list.
func (r *RoomRegistry) SetRooms(rooms []protocol.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]protocol.Room, len(rooms))
	for _, room := range rooms {
		if room.ID != "" {
			r.rooms[room.ID] = room
		}
	}
}

// Rooms returns copies of all known room metadata, ordered by id.
func (r *RoomRegistry) Rooms() []protocol.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Room returns the metadata for a single room.
func (r *RoomRegistry) Room(id string) (protocol.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	return room, ok
}

// SetSubscriptions replaces the subscribed-room set wholesale with the
// server's authoritative list.
func (r *RoomRegistry) SetSubscriptions(roomIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribed = make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		if id != "" {
			r.subscribed[id] = struct{}{}
		}
	}
}

// Subscribed returns the subscribed room ids, ordered.
func (r *RoomRegistry) Subscribed() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.subscribed))
	for id := range r.subscribed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports whether the client is subscribed to the room.
func (r *RoomRegistry) IsSubscribed(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.subscribed[id]
	return ok
}

// SetPrivateRoomID records the private room assigned during auth.
func (r *RoomRegistry) SetPrivateRoomID(id string) {
	r.mu.Lock()
	r.privateRoomID = id
	r.mu.Unlock()
}

// PrivateRoomID returns the private room id, empty when none is assigned.
func (r *RoomRegistry) PrivateRoomID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.privateRoomID
}

// Clear resets all room state. Called on disconnect; metadata is
// repopulated on the next successful auth.
func (r *RoomRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]protocol.Room)
	r.subscribed = make(map[string]struct{})
	r.privateRoomID = ""
}
