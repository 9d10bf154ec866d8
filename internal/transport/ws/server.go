package ws

import (
	"context"
	"net/http"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/logging"
)

// Options configures the websocket transport.
type Options struct {
	Config     config.WebSocketConfig
	Dispatcher Dispatcher
	// ReadLimit caps a client frame; zero leaves gorilla's default.
	ReadLimit int64
	Authorize func(*http.Request) error
	Logger    *logging.Logger
}

// Server coordinates the websocket router, hub and lifecycle management.
// It is mounted on the main HTTP server rather than listening itself.
type Server struct {
	hub    *Hub
	router *Router
	logger *logging.Logger
	cancel context.CancelFunc
}

// NewServer builds a websocket transport server.
func NewServer(opts Options) *Server {
	base, cancel := context.WithCancel(context.Background())
	hub := NewHub(opts.Logger)
	router := NewRouter(base, hub, opts.Dispatcher, opts.Logger, RouterOptions{
		HandshakeTimeout: opts.Config.HandshakeTimeout,
		IdleTimeout:      opts.Config.IdleTimeout,
		MaxInFlight:      opts.Config.MaxInFlight,
		ReadLimit:        opts.ReadLimit,
		Authorize:        opts.Authorize,
	})
	return &Server{
		hub:    hub,
		router: router,
		logger: opts.Logger,
		cancel: cancel,
	}
}

// Handler returns the upgrade endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.router.Handle)
}

// Stop closes every active session.
func (s *Server) Stop() {
	s.cancel()
	s.hub.CloseAll(ErrSessionShutdown)
}

// Count exposes the number of active sessions.
func (s *Server) Count() int {
	return s.hub.Count()
}
