// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler bundles the HTTP endpoints with the hub and origin policy they
// depend on, so nothing ambient is consulted at request time.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler creates the HTTP handler set for the given hub. The allowed
// origins list is normalized once and enforced on every upgrade.
func NewHandler(hub *Hub, allowedOrigins []string, log *slog.Logger) *Handler {
	policy := newOriginPolicy(allowedOrigins, log)
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
		log: log,
	}
}

// WebSocket handles WebSocket upgrade requests. It validates the method,
// upgrades the connection, assigns a fresh connection id, and registers the
// client with the hub, which launches the pump goroutines.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(uuid.NewString(), conn, h.hub, r.RemoteAddr)
	select {
	case h.hub.register <- client:
	case <-h.hub.ctx.Done():
		// The hub loop is gone; nobody will ever receive this client.
		_ = conn.Close()
	}
}

// Health provides a simple health check endpoint that returns server status.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Roomcast server is running!")
}

// TestPage serves an HTML page for exercising the room protocol by hand:
// create or join a room, watch the open-rooms list, start the chat, and
// exchange messages.
func (h *Handler) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		h.log.Error("error writing test page", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Roomcast Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        input { padding: 5px; margin-right: 6px; }
        button { padding: 5px 12px; }
    </style>
</head>
<body>
    <h1>Roomcast Test</h1>
    <div>
        <input id="name" placeholder="Display name">
        <input id="room" placeholder="Room name">
        <button onclick="send('createRoom', {name: name.value, roomName: room.value})">Create</button>
        <button onclick="send('joinRoom', {name: name.value, roomName: room.value})">Join</button>
        <button onclick="send('startRoom', room.value)">Start</button>
        <button onclick="send('leaveRoom')">Leave</button>
    </div>
    <div>
        <input id="text" placeholder="Message">
        <button onclick="send('message', {text: text.value}); text.value = ''">Send</button>
    </div>
    <div id="log"></div>
    <script>
        const log = document.getElementById('log');
        const ws = new WebSocket('ws://' + location.host + '/ws');
        function print(line) {
            const div = document.createElement('div');
            div.textContent = line;
            log.appendChild(div);
            log.scrollTop = log.scrollHeight;
        }
        function send(event, payload) {
            ws.send(JSON.stringify(payload === undefined ? {event} : {event, payload}));
        }
        ws.onopen = () => print('connected');
        ws.onclose = () => print('disconnected');
        ws.onmessage = (e) => e.data.split('\n').forEach(print);
    </script>
</body>
</html>`
