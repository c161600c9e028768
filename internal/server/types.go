// Package server defines the wire payload types exchanged with clients and
// small utility helpers reused across client and hub logic.
package server

import (
	"encoding/json"
	"log"
	"strings"
)

// Event type discriminators used on the wire.
const (
	eventJoin         = "join"
	eventMessage      = "message"
	eventTyping       = "typing"
	eventCloseRoom    = "close-room"
	eventRole         = "role"
	eventLeave        = "leave"
	eventParticipants = "participants"
	eventRoomClosed   = "room-closed"
	eventError        = "error"
)

// Envelope is the inbound frame format. Every client frame carries a type
// discriminator; the remaining fields are populated depending on the type.
type Envelope struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	ChatID   string `json:"chatId,omitempty"`
	Message  string `json:"message,omitempty"`
	Typing   bool   `json:"typing"`
}

// Message is a single chat message retained in a room's history. Date is
// server-assigned epoch milliseconds.
type Message struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Date     int64  `json:"date"`
}

type roleEvent struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

type messageEvent struct {
	Type string `json:"type"`
	Message
}

type joinEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type leaveEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type participantsEvent struct {
	Type string   `json:"type"`
	List []string `json:"list"`
}

type typingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

type roomClosedEvent struct {
	Type string `json:"type"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// marshalEvent encodes an outbound event. Marshalling these fixed structs
// cannot realistically fail; a nil return is skipped by the send path.
func marshalEvent(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding outbound event %T: %v", v, err)
		return nil
	}
	return payload
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
