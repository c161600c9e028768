// Package server keeps the in-memory room state: membership, append-only
// message history, and the creator recorded at room creation.
package server

import "sync"

// room is the stored state for one room id. The creator is fixed when the
// room is created and never reassigned, even if that connection leaves.
type room struct {
	members map[*Client]struct{}
	history []Message
	creator *Client
}

// RoomStore owns every live room, keyed by room id. A room exists in the
// store only while it has at least one member, or until its creator closes
// it explicitly.
//
// A store-wide mutex makes each exported method one atomic transition:
// member mutation, history append, and the member snapshot handed back for
// fanout happen in the same critical section. Cross-event ordering on top
// of that is the hub's dispatch lock.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// JoinResult reports the outcome of adding a member to a room.
type JoinResult struct {
	// Created is true when the join brought the room into existence.
	Created bool
	// Creator is true when the joining client is the room's recorded creator.
	Creator bool
	// History is a snapshot of the messages appended before this join.
	History []Message
	// Members is a snapshot of the membership including the joiner.
	Members []*Client
}

// NewRoomStore creates an empty room store.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*room),
	}
}

// JoinRoom adds client to roomID, creating the room first if it does not
// exist. The first joiner of a new room becomes its creator. Joining a room
// the client is already a member of is a no-op beyond the returned snapshots.
func (s *RoomStore) JoinRoom(roomID string, client *Client) JoinResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	created := false
	if !ok {
		rm = &room{
			members: make(map[*Client]struct{}),
			creator: client,
		}
		s.rooms[roomID] = rm
		created = true
	}
	rm.members[client] = struct{}{}

	return JoinResult{
		Created: created,
		Creator: rm.creator == client,
		History: append([]Message(nil), rm.history...),
		Members: rm.memberSnapshot(),
	}
}

// AppendMessage appends msg to the room's history and returns a membership
// snapshot for fanout. A message racing with room deletion is dropped;
// delivery is best effort.
func (s *RoomStore) AppendMessage(roomID string, msg Message) ([]*Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	rm.history = append(rm.history, msg)
	return rm.memberSnapshot(), true
}

// Members returns a snapshot of the room's membership, or nil if the room
// does not exist.
func (s *RoomStore) Members(roomID string) []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.memberSnapshot()
}

// History returns a snapshot of the room's message history in append order.
func (s *RoomStore) History(roomID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]Message(nil), rm.history...)
}

// IsCreator reports whether client is the recorded creator of roomID.
func (s *RoomStore) IsCreator(roomID string, client *Client) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	return ok && rm.creator == client
}

// RemoveMember removes client from roomID. When the removal empties the
// room, the room is deleted together with its history and creator record,
// and deleted is true so the caller skips notifications for a room that no
// longer exists. The remaining snapshot reflects membership after removal.
func (s *RoomStore) RemoveMember(roomID string, client *Client) (remaining []*Client, deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	delete(rm.members, client)
	if len(rm.members) == 0 {
		delete(s.rooms, roomID)
		return nil, true
	}
	return rm.memberSnapshot(), false
}

// CloseRoom deletes roomID on behalf of client, returning the final member
// snapshot for the room-closed fanout. It fails when the room does not
// exist or client is not its creator; nothing changes in that case.
func (s *RoomStore) CloseRoom(roomID string, client *Client) ([]*Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok || rm.creator != client {
		return nil, false
	}
	delete(s.rooms, roomID)
	return rm.memberSnapshot(), true
}

// RoomCount returns the number of live rooms.
func (s *RoomStore) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}

// memberSnapshot copies the member set. Callers hold s.mu.
func (r *room) memberSnapshot() []*Client {
	members := make([]*Client, 0, len(r.members))
	for member := range r.members {
		members = append(members, member)
	}
	return members
}
