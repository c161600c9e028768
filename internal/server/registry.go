// Package server tracks the session bound to each live connection: the
// username a client joined with and the room it joined.
package server

import "sync"

// Session is the binding of a connection to a username and room. It is
// created on the first valid join from a connection and destroyed when the
// connection goes away.
type Session struct {
	Username string
	RoomID   string
}

// Registry maps each live client to its session. A client has at most one
// session at any time; rejoining simply rebinds it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Client]Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[*Client]Session),
	}
}

// Bind creates or overwrites the session for client. Usernames are not
// validated and need not be unique.
func (r *Registry) Bind(client *Client, username, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[client] = Session{Username: username, RoomID: roomID}
}

// Lookup returns the session bound to client. Absence means the connection
// never joined; callers drop the event without surfacing an error.
func (r *Registry) Lookup(client *Client) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[client]
	return session, ok
}

// Unbind removes the session for client. Idempotent.
func (r *Registry) Unbind(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, client)
}

// Usernames resolves a member snapshot to the usernames currently bound to
// those clients. Members without a session are silently excluded.
func (r *Registry) Usernames(members []*Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(members))
	for _, member := range members {
		if session, ok := r.sessions[member]; ok {
			names = append(names, session.Username)
		}
	}
	return names
}
