package signaling

import "github.com/ratjar110/gameshow-app/internal/protocol"

// Room owns the set of sessions sharing a room id. Rooms exist exactly
// as long as they have at least one session: created implicitly on the
// first JOIN naming the id, deleted when the last session leaves.
type Room struct {
	ID       string
	sessions map[string]*Session
}

// Registry maps room ids to rooms. It is not safe for concurrent use:
// the hub's single event loop is the only caller, which is what makes
// add/remove/broadcast sequences atomic without locks. A multi-worker
// relay would need to shard ownership by room id before touching this.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Add places the session in the room named by sess.RoomID, creating the
// room if needed.
func (r *Registry) Add(sess *Session) *Room {
	room, ok := r.rooms[sess.RoomID]
	if !ok {
		room = &Room{ID: sess.RoomID, sessions: make(map[string]*Session)}
		r.rooms[sess.RoomID] = room
	}
	room.sessions[sess.ID] = sess
	return room
}

// Remove takes the session out of its room and deletes the room if it
// became empty. Reports whether the session was actually registered.
func (r *Registry) Remove(sess *Session) bool {
	room, ok := r.rooms[sess.RoomID]
	if !ok {
		return false
	}
	if _, ok := room.sessions[sess.ID]; !ok {
		return false
	}
	delete(room.sessions, sess.ID)
	if len(room.sessions) == 0 {
		delete(r.rooms, room.ID)
	}
	return true
}

// Room returns the room for id, or nil.
func (r *Registry) Room(id string) *Room {
	return r.rooms[id]
}

// Get returns the session clientID in room roomID, or nil.
func (r *Registry) Get(roomID, clientID string) *Session {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return room.sessions[clientID]
}

// Peers lists every session in the room except excludeID, in no
// particular order.
func (r *Registry) Peers(roomID, excludeID string) []protocol.PeerInfo {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	peers := make([]protocol.PeerInfo, 0, len(room.sessions))
	for id, sess := range room.sessions {
		if id == excludeID {
			continue
		}
		peers = append(peers, protocol.PeerInfo{
			ID:          id,
			DisplayName: sess.DisplayName,
			IsHost:      sess.IsHost,
			Group:       sess.Group,
		})
	}
	return peers
}

// SetGroup records a host-assigned group tag on a session. Unknown ids
// are ignored; a GROUPS_UPDATE may race a disconnect.
func (r *Registry) SetGroup(roomID, clientID, group string) {
	if sess := r.Get(roomID, clientID); sess != nil {
		sess.Group = group
	}
}

// Sessions returns the sessions of a room. Nil if the room is gone.
func (room *Room) Sessions() map[string]*Session {
	if room == nil {
		return nil
	}
	return room.sessions
}
