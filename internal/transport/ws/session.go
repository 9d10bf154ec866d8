package ws

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"medid-server-go/internal/platform/logging"
)

const defaultCloseTimeout = 5 * time.Second

// Message types exchanged on the socket.
const (
	TypeAnalyze  = "analyze"
	TypeDrugInfo = "drug_info"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeAck      = "ack"
	TypeResult   = "result"
	TypeError    = "error"
)

// Request is a client frame.
type Request struct {
	Type            string `json:"type"`
	ID              string `json:"id,omitempty"`
	ImageData       string `json:"image_data,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	ConfidenceCheck bool   `json:"confidence_check,omitempty"`
	DrugName        string `json:"drug_name,omitempty"`
}

// Reply is a server frame. Status mirrors the REST status for the same call.
type Reply struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Status int    `json:"status,omitempty"`
	Body   any    `json:"body,omitempty"`
}

// Dispatcher answers one analyze or drug_info request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (status int, body any)
}

type sessionOptions struct {
	IdleTimeout time.Duration
	MaxInFlight int
}

// Session encapsulates the lifecycle of a single websocket connection.
type Session struct {
	id         string
	conn       *Connection
	dispatcher Dispatcher
	logger     *logging.Logger
	idle       time.Duration
	inFlight   *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelCauseFunc
	// trackMu orders wg.Add against the closed flag so Close never waits
	// concurrently with a new Add.
	trackMu sync.Mutex
	wg      sync.WaitGroup

	closed atomic.Bool
}

// NewSession constructs a managed websocket session.
func NewSession(parent context.Context, conn *Connection, dispatcher Dispatcher, opts sessionOptions, logger *logging.Logger) *Session {
	sessionCtx, cancel := context.WithCancelCause(parent)
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Session{
		id:         conn.ID(),
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger,
		idle:       opts.IdleTimeout,
		inFlight:   semaphore.NewWeighted(int64(maxInFlight)),
		ctx:        sessionCtx,
		cancel:     cancel,
	}
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// ID exposes the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run reads frames until the client leaves and invokes onDone once exiting.
func (s *Session) Run(onDone func(error)) {
	var runErr error
	defer func() {
		s.Close(runErr)
		if onDone != nil {
			onDone(runErr)
		}
	}()

	if s.idle > 0 {
		go s.keepalive()
	}
	runErr = s.readLoop()
}

func (s *Session) readLoop() error {
	for {
		s.conn.ExtendDeadline(s.idle)
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if isClientGone(err) || s.ctx.Err() != nil {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			s.reply(Reply{Type: TypeError, Status: http.StatusBadRequest, Body: errorBody("only JSON text frames are supported")})
			continue
		}

		var req Request
		if err := sonic.Unmarshal(payload, &req); err != nil {
			s.reply(Reply{Type: TypeError, Status: http.StatusBadRequest, Body: errorBody("invalid JSON frame")})
			continue
		}
		s.handle(req)
	}
}

func (s *Session) handle(req Request) {
	switch req.Type {
	case TypePing:
		s.reply(Reply{Type: TypePong, ID: req.ID})
	case TypeAnalyze, TypeDrugInfo:
		if !s.inFlight.TryAcquire(1) {
			s.reply(Reply{Type: TypeError, ID: req.ID, Status: http.StatusTooManyRequests, Body: errorBody("too many requests in flight")})
			return
		}
		if !s.track() {
			s.inFlight.Release(1)
			return
		}
		s.reply(Reply{Type: TypeAck, ID: req.ID})

		go func() {
			defer s.wg.Done()
			defer s.inFlight.Release(1)

			status, body := s.dispatcher.Dispatch(s.ctx, req)
			kind := TypeResult
			if status >= http.StatusBadRequest {
				kind = TypeError
			}
			s.reply(Reply{Type: kind, ID: req.ID, Status: status, Body: body})
		}()
	default:
		s.reply(Reply{Type: TypeError, ID: req.ID, Status: http.StatusBadRequest, Body: errorBody("unsupported message type: " + req.Type)})
	}
}

// track registers one dispatch with wg unless the session is closing.
func (s *Session) track() bool {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Session) reply(r Reply) {
	if err := s.conn.WriteJSON(r); err != nil && !stderrors.Is(err, ErrConnectionClosed) {
		s.logger.WarnTag("WS", "session %s write failed: %v", s.id, err)
	}
}

func (s *Session) keepalive() {
	ticker := time.NewTicker(s.idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.Ping(); err != nil {
				return
			}
		}
	}
}

// Close cancels in-flight work, waits briefly for it and closes the socket.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.cancel(reason)

	s.trackMu.Lock()
	s.trackMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(defaultCloseTimeout):
		s.logger.WarnTag("WS", "session %s requests did not finish: %v", s.id, reason)
	}

	if err := s.conn.Close(); err != nil {
		s.logger.WarnTag("WS", "session %s connection close failed: %v", s.id, err)
	}
}

func isClientGone(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		stderrors.Is(err, net.ErrClosed)
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}
