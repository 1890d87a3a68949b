// Package dispatch fans accepted bus positions out to live-tracking
// websocket clients (the admin and student map views).
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/suchiii29/campushub/internal/models"
	"github.com/suchiii29/campushub/internal/observability"
)

// Session wraps one websocket connection with a write lock, since
// broadcasts and pings may race.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) send(pos models.BusPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(pos)
}

// Hub holds the connected tracking clients.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{sessions: make(map[*Session]struct{}), logger: logger}
}

func (h *Hub) Add(conn *websocket.Conn) *Session {
	s := &Session{conn: conn}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	observability.TrackingClients.Set(float64(n))
	return s
}

func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()
	observability.TrackingClients.Set(float64(n))
	_ = s.conn.Close()
}

// Broadcast sends the position to every client. Clients that fail a
// write are dropped; a dead map viewer must not stall ingestion.
func (h *Hub) Broadcast(pos models.BusPosition) {
	h.mu.RLock()
	snapshot := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.send(pos); err != nil {
			if h.logger != nil {
				h.logger.Warn("dropping tracking client", "error", err)
			}
			h.Remove(s)
		}
	}
}

// Count reports connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
