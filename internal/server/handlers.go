// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for WebSocket upgrade requests. It
// validates that the request uses the GET method, upgrades the HTTP
// connection, creates a new Client bound to the given hub, and hands it to
// the hub for registration.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)

		// Register the client with the hub; the hub will launch the pump goroutines.
		hub.register <- client
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Huddle server is running!")
}

// TestPageHandler serves an HTML page for exercising the room protocol by
// hand: join a room, send messages, watch typing indicators, and close the
// room as its creator.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Huddle Test Room</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        #typing { color: gray; font-style: italic; min-height: 1em; }
    </style>
</head>
<body>
    <h1>Huddle Test Room</h1>
    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="chatId" placeholder="Room">
        <button onclick="join()">Join</button>
        <button onclick="closeRoom()">Close room</button>
    </div>
    <div id="events"></div>
    <div id="typing"></div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." oninput="notifyTyping()">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        let typingTimer = null;
        const events = document.getElementById('events');
        const typing = document.getElementById('typing');

        function show(text) {
            const line = document.createElement('div');
            line.textContent = text;
            events.appendChild(line);
            events.scrollTop = events.scrollHeight;
        }

        function join() {
            if (!ws) {
                ws = new WebSocket('ws://' + location.host + '/ws');
                ws.onmessage = function(event) {
                    const msg = JSON.parse(event.data);
                    if (msg.type === 'message') {
                        show(msg.username + ': ' + msg.message);
                    } else if (msg.type === 'typing') {
                        typing.textContent = msg.typing ? msg.username + ' is typing...' : '';
                    } else if (msg.type === 'participants') {
                        show('participants: ' + msg.list.join(', '));
                    } else {
                        show('[' + msg.type + '] ' + (msg.username || msg.role || msg.message || ''));
                    }
                };
                ws.onclose = function() { show('disconnected'); ws = null; };
                ws.onopen = sendJoin;
            } else {
                sendJoin();
            }
        }

        function sendJoin() {
            ws.send(JSON.stringify({
                type: 'join',
                username: document.getElementById('username').value,
                chatId: document.getElementById('chatId').value
            }));
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            if (ws && input.value) {
                ws.send(JSON.stringify({ type: 'message', message: input.value }));
                input.value = '';
            }
        }

        function notifyTyping() {
            if (!ws) return;
            ws.send(JSON.stringify({ type: 'typing', typing: true }));
            clearTimeout(typingTimer);
            typingTimer = setTimeout(function() {
                ws.send(JSON.stringify({ type: 'typing', typing: false }));
            }, 1000);
        }

        function closeRoom() {
            if (ws) {
                ws.send(JSON.stringify({ type: 'close-room', chatId: document.getElementById('chatId').value }));
            }
        }
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
