package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-faceverify/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultReadLimit        = 65536
	subscriberBuffer        = 16
)

var (
	ErrConnectionLost = errors.New("transport: verification connection lost")
	ErrSessionClosed  = errors.New("transport: session already canceled")
)

// WebsocketSessionFactory creates sessions that talk to the verification
// service over a websocket using JSON frames.
type WebsocketSessionFactory struct {
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration
	Logger       core.Logger
}

func NewWebsocketSessionFactory(logger core.Logger) *WebsocketSessionFactory {
	return &WebsocketSessionFactory{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		WriteTimeout: defaultWriteTimeout,
		Logger:       glog.Ensure(logger),
	}
}

func (f *WebsocketSessionFactory) CreateSession(_ context.Context, endpoint string, token core.Token) (core.Session, error) {
	if f == nil {
		return nil, core.NewTransportError(nil, goerrors.CategoryInternal, "transport: session factory is nil", nil)
	}
	normalized, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if token.Empty() {
		return nil, core.NewTransportError(nil, goerrors.CategoryValidation, "transport: token is required", nil)
	}
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	writeTimeout := f.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return newWebsocketSession(normalized, token, dialer, writeTimeout, glog.Ensure(f.Logger)), nil
}

func normalizeEndpoint(endpoint string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || parsed.Host == "" {
		return "", core.NewTransportError(
			nil,
			goerrors.CategoryValidation,
			"transport: invalid verification endpoint",
			map[string]any{"endpoint": endpoint},
		)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "ws", "wss":
		return parsed.String(), nil
	default:
		return "", core.NewTransportError(
			nil,
			goerrors.CategoryValidation,
			"transport: verification endpoint must use ws or wss",
			map[string]any{"endpoint": endpoint, "scheme": parsed.Scheme},
		)
	}
}

// WebsocketSession publishes session states to every subscriber. New
// subscribers first receive the latest state.
type WebsocketSession struct {
	endpoint     string
	token        core.Token
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	logger       core.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	started     bool
	canceled    bool
	terminal    bool
	hasState    bool
	current     core.SessionState
	subscribers map[int]*subscriber
	nextID      int
	conn        *websocket.Conn

	writeMu    sync.Mutex
	cancelOnce sync.Once
}

func newWebsocketSession(endpoint string, token core.Token, dialer *websocket.Dialer, writeTimeout time.Duration, logger core.Logger) *WebsocketSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebsocketSession{
		endpoint:     endpoint,
		token:        token,
		dialer:       dialer,
		writeTimeout: writeTimeout,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		subscribers:  map[int]*subscriber{},
	}
}

func (s *WebsocketSession) Observe(ctx context.Context) (<-chan core.SessionState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sub := newSubscriber()

	s.mu.Lock()
	if s.hasState {
		sub.push(s.current)
	}
	if !s.terminal {
		id := s.nextID
		s.nextID++
		s.subscribers[id] = sub
		sub.detach = func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		}
	}
	s.mu.Unlock()

	go sub.pump(ctx)
	return sub.out, nil
}

// Start dials the endpoint and streams states in the background. It fails
// when called twice or after Cancel.
func (s *WebsocketSession) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return core.ErrSessionAlreadyStarted
	}
	if s.canceled {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.started = true
	s.mu.Unlock()

	s.publish(core.ConnectingState())
	go s.run()
	return nil
}

// Cancel stops the session and publishes Canceled unless a terminal state
// was already reached. Safe to call more than once.
func (s *WebsocketSession) Cancel() {
	s.cancelOnce.Do(func() {
		s.mu.Lock()
		s.canceled = true
		conn := s.conn
		s.mu.Unlock()
		s.cancel()

		if conn != nil {
			if err := s.writeFrame(conn, clientFrame{Type: frameTypeCancel}); err != nil {
				s.logger.Debug("cancel frame not delivered", "endpoint", s.endpoint, "error", err)
			}
			_ = conn.Close()
		}
		s.publish(core.CanceledState())
	})
}

func (s *WebsocketSession) run() {
	conn, _, err := s.dialer.DialContext(s.ctx, s.endpoint, nil)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error("verification dial failed", "endpoint", s.endpoint, "error", err)
			s.publish(core.ErrorState(core.NewTransportError(
				err,
				goerrors.CategoryExternal,
				"transport: dial verification endpoint",
				map[string]any{"endpoint": s.endpoint},
			)))
		}
		return
	}

	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	conn.SetReadLimit(defaultReadLimit)
	if err := s.writeFrame(conn, clientFrame{Type: frameTypeStart, Token: s.token.Value()}); err != nil {
		if s.ctx.Err() == nil {
			s.publish(core.ErrorState(fmt.Errorf("transport: send start frame: %w", err)))
		}
		return
	}

	for {
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Error("verification connection read failed", "endpoint", s.endpoint, "error", err)
			}
			s.publish(core.ErrorState(fmt.Errorf("%w: %v", ErrConnectionLost, err)))
			return
		}
		state, ok := frame.toState()
		if !ok {
			s.logger.Debug("ignoring unknown verification frame", "state", frame.State)
			continue
		}
		s.publish(state)
		if state.Terminal() {
			s.writeMu.Lock()
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeTimeout),
			)
			s.writeMu.Unlock()
			return
		}
	}
}

func (s *WebsocketSession) writeFrame(conn *websocket.Conn, frame clientFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

// publish records state and fans it out. Nothing is published after the
// first terminal state.
func (s *WebsocketSession) publish(state core.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return
	}
	s.current = state
	s.hasState = true
	for _, sub := range s.subscribers {
		sub.push(state)
	}
	if state.Terminal() {
		s.terminal = true
		s.subscribers = map[int]*subscriber{}
	}
}

type subscriber struct {
	mu      sync.Mutex
	pending []core.SessionState
	signal  chan struct{}
	out     chan core.SessionState
	detach  func()
}

func newSubscriber() *subscriber {
	return &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan core.SessionState, subscriberBuffer),
	}
}

func (s *subscriber) push(state core.SessionState) {
	s.mu.Lock()
	s.pending = append(s.pending, state)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() (core.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return core.SessionState{}, false
	}
	state := s.pending[0]
	s.pending = s.pending[1:]
	return state, true
}

// pump delivers queued states in order and closes out after the first
// terminal state or when ctx ends.
func (s *subscriber) pump(ctx context.Context) {
	defer close(s.out)
	defer func() {
		if s.detach != nil {
			s.detach()
		}
	}()
	for {
		for {
			state, ok := s.next()
			if !ok {
				break
			}
			select {
			case s.out <- state:
			case <-ctx.Done():
				return
			}
			if state.Terminal() {
				return
			}
		}
		select {
		case <-s.signal:
		case <-ctx.Done():
			return
		}
	}
}

var _ core.SessionFactory = (*WebsocketSessionFactory)(nil)
var _ core.Session = (*WebsocketSession)(nil)
