package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"medid-server-go/internal/domain/failure"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/observability"
)

// Router upgrades HTTP connections to websocket sessions.
type Router struct {
	base       context.Context
	hub        *Hub
	dispatcher Dispatcher
	logger     *logging.Logger

	upgrader         *websocket.Upgrader
	handshakeTimeout time.Duration
	readLimit        int64
	authorize        func(*http.Request) error
	session          sessionOptions
}

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	MaxInFlight      int
	// ReadLimit caps a single client frame in bytes.
	ReadLimit   int64
	CheckOrigin func(r *http.Request) bool
	Authorize   func(r *http.Request) error
}

// NewRouter constructs a websocket router. Sessions live under base, not
// the upgrade request, so they outlive the handler call.
func NewRouter(base context.Context, hub *Hub, dispatcher Dispatcher, logger *logging.Logger, opts RouterOptions) *Router {
	upgrader := &websocket.Upgrader{
		CheckOrigin:      opts.CheckOrigin,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Router{
		base:             base,
		hub:              hub,
		dispatcher:       dispatcher,
		logger:           logger,
		upgrader:         upgrader,
		handshakeTimeout: timeout,
		readLimit:        opts.ReadLimit,
		authorize:        opts.Authorize,
		session: sessionOptions{
			IdleTimeout: opts.IdleTimeout,
			MaxInFlight: opts.MaxInFlight,
		},
	}
}

// Handle upgrades the HTTP connection and launches a new websocket session.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	if r.authorize != nil {
		if err := r.authorize(req); err != nil {
			r.logger.WarnTag("WS", "rejected upgrade from %s: %v", req.RemoteAddr, err)
			writeUnauthorized(w, err)
			return
		}
	}

	handshakeCtx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()
	req = req.WithContext(handshakeCtx)

	spanCtx, spanEnd := observability.StartSpan(handshakeCtx, "transport.websocket", "handle")
	var spanErr error
	defer func() {
		spanEnd(spanErr)
	}()

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		spanErr = err
		observability.RecordMetric(spanCtx, "websocket.upgrade.error", 1, map[string]string{
			"component": "transport.websocket",
		})
		r.logger.ErrorTag("WS", "handshake failed: %v", err)
		return
	}
	if r.readLimit > 0 {
		conn.SetReadLimit(r.readLimit)
	}

	clientID := resolveClientID(req)
	wsConn := NewConnection(clientID, conn)
	idle := r.session.IdleTimeout
	conn.SetPongHandler(func(string) error {
		wsConn.ExtendDeadline(idle)
		return nil
	})

	session := NewSession(r.base, wsConn, r.dispatcher, r.session, r.logger)
	r.hub.Register(session)
	r.logger.InfoTag("WS", "session %s opened from %s", clientID, req.RemoteAddr)
	r.recordConnections(spanCtx)

	go session.Run(func(runErr error) {
		r.hub.Unregister(session)
		if runErr != nil {
			r.logger.WarnTag("WS", "session %s ended: %v", session.ID(), runErr)
		} else {
			r.logger.InfoTag("WS", "session %s closed", session.ID())
		}
		r.recordConnections(context.Background())
	})
}

func (r *Router) recordConnections(ctx context.Context) {
	observability.RecordMetric(ctx, "websocket.connections", float64(r.hub.Count()), map[string]string{
		"component": "transport.websocket",
	})
}

func resolveClientID(req *http.Request) string {
	clientID := req.Header.Get("Client-Id")
	if clientID == "" {
		clientID = req.URL.Query().Get("client-id")
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return clientID
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	body, _ := sonic.Marshal(failure.Classify(err).Body())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(body)
}
