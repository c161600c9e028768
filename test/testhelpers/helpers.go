// Package testhelpers provides common utilities and helper functions for testing the Huddle server.
//
// This package contains reusable test utilities that are shared across unit and integration tests.
// It provides functions for creating test servers, making HTTP requests, speaking the room
// protocol over WebSocket connections, and asserting on received events to reduce code
// duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// readResult carries the outcome of a single ReadMessage call performed in a
// background goroutine.
type readResult struct {
	data []byte
	err  error
}

var (
	pendingReadsMu sync.Mutex
	pendingReads   = map[*websocket.Conn]chan readResult{}
)

// beginRead returns a channel that yields the next frame read from the
// connection. A read already in flight from a previous helper call is reused;
// otherwise a new background read is started. Reads carry no deadline because
// a timed-out read permanently poisons a gorilla/websocket connection;
// callers bound their wait with a timer and may leave the read pending for a
// later helper call to consume.
func beginRead(conn *websocket.Conn) chan readResult {
	pendingReadsMu.Lock()
	defer pendingReadsMu.Unlock()
	if ch, ok := pendingReads[conn]; ok {
		return ch
	}
	ch := make(chan readResult, 1)
	pendingReads[conn] = ch
	go func() {
		_ = conn.SetReadDeadline(time.Time{})
		_, data, err := conn.ReadMessage()
		ch <- readResult{data: data, err: err}
	}()
	return ch
}

// finishRead forgets the pending read for the connection after its result has
// been consumed.
func finishRead(conn *websocket.Conn) {
	pendingReadsMu.Lock()
	delete(pendingReads, conn)
	pendingReadsMu.Unlock()
}

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// the given Origin header. It returns the connection or an error if the
// connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendJoin sends a join frame binding the connection to a username and room.
func SendJoin(conn *websocket.Conn, username, chatID string) error {
	return conn.WriteJSON(map[string]string{
		"type":     "join",
		"username": username,
		"chatId":   chatID,
	})
}

// SendChatMessage sends a chat message frame on the connection.
func SendChatMessage(conn *websocket.Conn, message string) error {
	return conn.WriteJSON(map[string]string{
		"type":    "message",
		"message": message,
	})
}

// SendTyping sends a typing indicator frame on the connection.
func SendTyping(conn *websocket.Conn, typing bool) error {
	return conn.WriteJSON(map[string]any{
		"type":   "typing",
		"typing": typing,
	})
}

// SendCloseRoom sends a close-room frame targeting the given room id.
func SendCloseRoom(conn *websocket.Conn, chatID string) error {
	return conn.WriteJSON(map[string]string{
		"type":   "close-room",
		"chatId": chatID,
	})
}

// ReadEvent reads the next event frame from the connection and decodes it.
// It fails the test if no frame arrives within the timeout.
func ReadEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	select {
	case res := <-beginRead(conn):
		finishRead(conn)
		if res.err != nil {
			t.Fatalf("Failed to read event: %v", res.err)
		}
		var event map[string]any
		if err := json.Unmarshal(res.data, &event); err != nil {
			t.Fatalf("Failed to read event: %v", err)
		}
		return event
	case <-time.After(timeout):
		t.Fatalf("Failed to read event: timed out after %v", timeout)
		return nil
	}
}

// ExpectEvent reads the next event frame and fails the test unless its type
// matches the expected discriminator. The decoded event is returned for
// further assertions.
func ExpectEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	event := ReadEvent(t, conn, 2*time.Second)
	if event["type"] != eventType {
		t.Fatalf("Expected event type %q, got %v", eventType, event)
	}
	return event
}

// ExpectNoEvent verifies that no frame arrives on the connection within the
// timeout. Connection closure also counts as "no event".
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	select {
	case res := <-beginRead(conn):
		finishRead(conn)
		if res.err == nil {
			t.Fatalf("Expected no event, but received: %s", res.data)
		}
		if netErr, ok := res.err.(net.Error); ok && netErr.Timeout() {
			return
		}
		if websocket.IsCloseError(res.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return
		}
		t.Fatalf("Unexpected error while waiting for absence of events: %v", res.err)
	case <-time.After(timeout):
		// No frame arrived in the window; the background read stays pending
		// and will serve the next helper call on this connection.
	}
}

// ExpectConnectionClosed verifies that the next read on the connection
// reports closure rather than another event frame.
func ExpectConnectionClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	select {
	case res := <-beginRead(conn):
		finishRead(conn)
		if res.err == nil {
			t.Fatalf("Expected connection to be closed, but received: %s", res.data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected connection to be closed, but read timed out")
	}
}

// ParticipantsOf extracts the username list from a participants event.
func ParticipantsOf(t *testing.T, event map[string]any) []string {
	t.Helper()
	raw, ok := event["list"].([]any)
	if !ok {
		t.Fatalf("Participants event has no list: %v", event)
	}
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		name, ok := entry.(string)
		if !ok {
			t.Fatalf("Participant entry is not a string: %v", entry)
		}
		names = append(names, name)
	}
	return names
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// CreateJSONFrame encodes an arbitrary payload for raw sends.
func CreateJSONFrame(t *testing.T, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return raw
}
