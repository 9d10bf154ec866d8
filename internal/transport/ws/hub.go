package ws

import (
	"sync"

	"medid-server-go/internal/platform/logging"
)

// Hub tracks the open sessions of one Server.
type Hub struct {
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Register adds session, replacing and closing any session with the same
// client id.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	h.mu.Lock()
	previous := h.sessions[session.ID()]
	h.sessions[session.ID()] = session
	h.mu.Unlock()

	if previous != nil && previous != session {
		h.logger.WarnTag("WS", "client %s reconnected; closing previous session", session.ID())
		go previous.Close(ErrSessionShutdown)
	}
}

// Unregister removes session if it is still the one stored under its id.
func (h *Hub) Unregister(session *Session) {
	if session == nil {
		return
	}
	h.mu.Lock()
	if h.sessions[session.ID()] == session {
		delete(h.sessions, session.ID())
	}
	h.mu.Unlock()
}

// CloseAll closes every session in parallel and empties the hub.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close(reason)
		}(s)
	}
	wg.Wait()
	if len(sessions) > 0 {
		h.logger.InfoTag("WS", "closed %d sessions: %v", len(sessions), reason)
	}
}

// Count reports the number of open sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
