// Package server interprets inbound client events and drives the registry,
// room store, and broadcast fanout. The dispatcher is the only place that
// mutates room state in response to client traffic.
package server

import (
	"encoding/json"
	"log"
	"time"
)

// outcome tags the result of dispatching one inbound frame.
type outcome int

const (
	// outcomeOK: the event mutated state and/or produced fanout.
	outcomeOK outcome = iota
	// outcomeIgnored: malformed, unknown, or unauthorized-by-absence events
	// dropped without a reply.
	outcomeIgnored
	// outcomeRejected: a valid event refused with an error reply to the
	// sender only.
	outcomeRejected
)

// dispatchLocked routes one raw inbound frame from client. Malformed
// payloads are logged and dropped; they never produce a protocol-level error
// reply and never crash the handler. Callers hold dispatchMu.
func (h *Hub) dispatchLocked(client *Client, raw []byte) outcome {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Invalid payload from %s: %v", client.addr, err)
		return outcomeIgnored
	}

	switch env.Type {
	case eventJoin:
		return h.handleJoin(client, env)
	case eventMessage:
		return h.handleMessage(client, env)
	case eventTyping:
		return h.handleTyping(client, env)
	case eventCloseRoom:
		return h.handleCloseRoom(client, env)
	default:
		log.Printf("Unknown event type %q from %s", env.Type, client.addr)
		return outcomeIgnored
	}
}

// handleJoin binds the client's session, ensures the room exists, and adds
// the client as a member. The joiner learns its role and receives the full
// history replay before the room-wide join and participants fanout, which
// the joiner receives as well.
func (h *Hub) handleJoin(client *Client, env Envelope) outcome {
	if env.Username == "" || env.ChatID == "" {
		log.Printf("Join from %s missing username or chatId", client.addr)
		return outcomeIgnored
	}

	h.registry.Bind(client, env.Username, env.ChatID)
	result := h.rooms.JoinRoom(env.ChatID, client)

	role := "member"
	if result.Creator {
		role = "creator"
	}
	h.sendEvent(client, roleEvent{Type: eventRole, Role: role})

	// Replay prior messages to the joiner only, in append order.
	for _, msg := range result.History {
		h.sendEvent(client, messageEvent{Type: eventMessage, Message: msg})
	}

	h.broadcastTo(result.Members, joinEvent{Type: eventJoin, Username: env.Username})
	h.broadcastTo(result.Members, participantsEvent{
		Type: eventParticipants,
		List: h.registry.Usernames(result.Members),
	})
	return outcomeOK
}

// handleMessage appends a message with a server-assigned timestamp to the
// sender's room and fans it out. Messages from unjoined connections are
// silently dropped.
func (h *Hub) handleMessage(client *Client, env Envelope) outcome {
	session, ok := h.registry.Lookup(client)
	if !ok {
		return outcomeIgnored
	}

	msg := Message{
		Username: session.Username,
		Message:  env.Message,
		Date:     time.Now().UnixMilli(),
	}
	members, ok := h.rooms.AppendMessage(session.RoomID, msg)
	if !ok {
		// Room deleted between arrival and append; best effort only.
		return outcomeIgnored
	}

	h.broadcastTo(members, messageEvent{Type: eventMessage, Message: msg})
	return outcomeOK
}

// handleTyping relays a typing indicator to the sender's room. The
// indicator is stateless and never recorded.
func (h *Hub) handleTyping(client *Client, env Envelope) outcome {
	session, ok := h.registry.Lookup(client)
	if !ok {
		return outcomeIgnored
	}

	h.broadcastTo(h.rooms.Members(session.RoomID), typingEvent{
		Type:     eventTyping,
		Username: session.Username,
		Typing:   env.Typing,
	})
	return outcomeOK
}

// handleCloseRoom deletes the room named in the payload when the sender is
// its recorded creator: every member receives room-closed and then has its
// channel closed. A non-creator gets an error reply and nothing changes.
// The sender's own room need not match the payload's chatId.
func (h *Hub) handleCloseRoom(client *Client, env Envelope) outcome {
	if _, ok := h.registry.Lookup(client); !ok {
		return outcomeIgnored
	}

	members, ok := h.rooms.CloseRoom(env.ChatID, client)
	if !ok {
		h.sendEvent(client, errorEvent{Type: eventError, Message: "Not creator"})
		return outcomeRejected
	}

	h.broadcastTo(members, roomClosedEvent{Type: eventRoomClosed})

	// Closing each member's send channel flushes the queued room-closed
	// frame and then tears the connection down via its write pump.
	for _, member := range members {
		h.unregisterClientLocked(member)
	}

	log.Printf("Room %q closed by its creator", env.ChatID)
	return outcomeOK
}

// handleDisconnect runs when a connection leaves the hub for any reason. It
// unbinds the session and removes the member; the room is deleted silently
// when it empties, otherwise the remaining members learn about the leave.
// Callers hold dispatchMu.
func (h *Hub) handleDisconnect(client *Client) {
	session, ok := h.registry.Lookup(client)
	if !ok {
		return
	}
	h.registry.Unbind(client)

	remaining, deleted := h.rooms.RemoveMember(session.RoomID, client)
	if deleted {
		log.Printf("Room %q deleted (empty)", session.RoomID)
		return
	}
	if len(remaining) == 0 {
		return
	}

	h.broadcastTo(remaining, leaveEvent{Type: eventLeave, Username: session.Username})
	h.broadcastTo(remaining, participantsEvent{
		Type: eventParticipants,
		List: h.registry.Usernames(remaining),
	})
}
