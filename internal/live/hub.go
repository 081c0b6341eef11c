// Package live pushes list-change notifications to open users pages over
// websockets.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	TypeConnected    = "connected"
	TypeUsersChanged = "users-changed"

	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Hub tracks connected pages by session id.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]string
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]string),
		logger:  logger,
	}
}

// Handler upgrades the request and keeps the connection registered under
// the session id returned by sessionID until the page goes away.
func (h *Hub) Handler(sessionID func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Debug("Live websocket upgrade failed", "error", err)
			return
		}

		h.register(conn, sessionID(r))
		defer h.unregister(conn)

		h.send(conn, Message{Type: TypeConnected})

		done := make(chan struct{})
		go h.pingLoop(conn, done)
		h.readPump(conn)
		close(done)
	}
}

func (h *Hub) register(conn *websocket.Conn, session string) {
	h.mu.Lock()
	h.clients[conn] = session
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("Live client connected", "total", total)
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		conn.Close()
		h.logger.Debug("Live client disconnected", "total", total)
	}
}

func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Live read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			h.mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast sends msg to every page except those of the session that
// caused it.
func (h *Hub) Broadcast(msg Message, exceptSession string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal live message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for conn, session := range h.clients {
		if exceptSession != "" && session == exceptSession {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("Failed to send live message", "error", err)
			conn.Close()
			delete(h.clients, conn)
			continue
		}
		sent++
	}
	h.logger.Debug("Live message broadcast", "type", msg.Type, "clients", sent)
}

// UsersChanged tells other pages the user list changed.
func (h *Hub) UsersChanged(originSession string) {
	h.Broadcast(Message{Type: TypeUsersChanged}, originSession)
}

// Count returns the number of connected pages.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]string)
}
