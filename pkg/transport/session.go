package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teneolabs/teneo-go/pkg/backoff"
	"github.com/teneolabs/teneo-go/pkg/dedup"
	"github.com/teneolabs/teneo-go/pkg/events"
	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/ratelimit"
	"github.com/teneolabs/teneo-go/pkg/registry"
	"github.com/teneolabs/teneo-go/pkg/signer"
	"github.com/teneolabs/teneo-go/pkg/webhook"
)

const writeTimeout = 10 * time.Second

// ResponseFormat selects how agent responses are surfaced.
type ResponseFormat string

const (
	FormatRaw       ResponseFormat = "raw"
	FormatHumanized ResponseFormat = "humanized"
	FormatBoth      ResponseFormat = "both"
)

// Options configures a Session. URL, Signer, and Emitter are required;
// everything else has a default or is optional.
type Options struct {
	URL        string
	Signer     *signer.Oracle
	ClientType string
	Emitter    *events.Emitter
	Logger     *slog.Logger

	Agents   *registry.AgentRegistry
	Rooms    *registry.RoomRegistry
	Dedup    *dedup.Cache
	Limiter  *ratelimit.Limiter
	Webhooks *webhook.Dispatcher

	Verification VerifyConfig

	ConnectTimeout    time.Duration
	AuthTimeout       time.Duration
	MessageTimeout    time.Duration
	HeartbeatInterval time.Duration
	CachedAuthWait    time.Duration
	AuthPollInterval  time.Duration

	ReconnectEnabled     bool
	ReconnectStrategy    backoff.Strategy
	ReconnectMaxAttempts int

	Dialer *websocket.Dialer
}

func (o *Options) applyDefaults() {
	if o.ClientType == "" {
		o.ClientType = protocol.ClientTypeUser
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 30 * time.Second
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 30 * time.Second
	}
	if o.MessageTimeout <= 0 {
		o.MessageTimeout = 30 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.CachedAuthWait <= 0 {
		o.CachedAuthWait = time.Second
	}
	if o.AuthPollInterval <= 0 {
		o.AuthPollInterval = 100 * time.Millisecond
	}
	if o.ReconnectStrategy == nil {
		o.ReconnectStrategy = backoff.DefaultReconnect()
	}
	if o.ReconnectMaxAttempts <= 0 {
		o.ReconnectMaxAttempts = 15
	}
	if o.Dialer == nil {
		d := *websocket.DefaultDialer
		o.Dialer = &d
	}
}

// Session owns the socket, the heartbeat, the authentication state
// machine, the reconnection loop, and the outbound send path. A session
// holds at most one open socket at a time.
type Session struct {
	opts     Options
	log      *slog.Logger
	emitter  *events.Emitter
	pending  *PendingTable
	handlers *HandlerRegistry

	mu             sync.Mutex
	conn           *websocket.Conn
	gen            uint64 // socket generation; stale teardowns are no-ops
	phase          Phase
	auth           AuthState
	connected      bool
	reconnecting   bool
	reconnectTries int
	lastConnected  time.Time
	lastErr        string
	challengeSeen  bool
	closedByUser   bool
	heartbeatStop  chan struct{}
	stopReconnect  chan struct{}
	format         ResponseFormat
	includeMeta    bool

	writeMu sync.Mutex
}

// New creates a Session. The handler set for every inbound type is
// registered up front; nothing runs until Connect.
func New(opts Options) (*Session, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidMessage)
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrInvalidMessage)
	}
	if opts.Emitter == nil {
		return nil, fmt.Errorf("%w: emitter is required", ErrInvalidMessage)
	}
	opts.applyDefaults()

	s := &Session{
		opts:        opts,
		log:         opts.Logger,
		emitter:     opts.Emitter,
		pending:     NewPendingTable(opts.Logger),
		phase:       PhaseDisconnected,
		format:      FormatBoth,
		includeMeta: true,
	}
	s.handlers = newHandlerRegistry(opts.Logger)
	registerDefaultHandlers(s.handlers)

	if opts.Agents != nil {
		opts.Agents.SetOnChange(func() {
			s.emitter.Emit(events.AgentList, opts.Agents.All())
		})
	}
	return s, nil
}

// Connect opens the socket and completes the challenge–response
// handshake. It returns once the session is connected and authenticated,
// or with an error classifying the failure. A prior socket, if any, is
// torn down first.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closedByUser {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.stopReconnect != nil {
		close(s.stopReconnect)
		s.stopReconnect = nil
		s.reconnecting = false
	}
	gen := s.gen
	s.mu.Unlock()

	s.teardown(gen, nil, false)
	return s.connect(ctx)
}

func (s *Session) connect(ctx context.Context) error {
	s.setPhase(PhaseConnecting)

	dialer := *s.opts.Dialer
	dialer.HandshakeTimeout = s.opts.ConnectTimeout

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, s.opts.URL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		s.mu.Lock()
		s.phase = PhaseDisconnected
		s.lastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	conn.SetReadLimit(protocol.MaxMessageSize)
	liveness := 2 * s.opts.HeartbeatInterval
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(liveness))
	})
	pingFallback := conn.PingHandler()
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(liveness))
		return pingFallback(appData)
	})

	s.mu.Lock()
	if s.closedByUser {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.conn = conn
	s.connected = true
	s.lastConnected = time.Now()
	s.lastErr = ""
	s.challengeSeen = false
	s.auth = AuthState{}
	s.phase = PhaseAwaitingAuth
	hbStop := make(chan struct{})
	s.heartbeatStop = hbStop
	s.mu.Unlock()

	s.emitter.Emit(events.ConnectionOpen, nil)
	s.emitConnectionState()

	go s.readLoop(conn, gen)
	go s.heartbeat(conn, gen, hbStop)

	if err := s.awaitAuth(ctx, gen); err != nil {
		s.teardown(gen, err, false)
		return err
	}
	return nil
}

// awaitAuth polls the authentication phase until it settles. When no
// challenge arrives within the cached-auth window, a request_challenge
// frame is sent once.
func (s *Session) awaitAuth(ctx context.Context, gen uint64) error {
	deadline := time.NewTimer(s.opts.AuthTimeout)
	defer deadline.Stop()
	cachedWait := time.NewTimer(s.opts.CachedAuthWait)
	defer cachedWait.Stop()
	poll := time.NewTicker(s.opts.AuthPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())

		case <-deadline.C:
			return fmt.Errorf("%w: authentication not completed within %s", ErrTimeout, s.opts.AuthTimeout)

		case <-cachedWait.C:
			s.mu.Lock()
			quiet := gen == s.gen && s.phase == PhaseAwaitingAuth && !s.challengeSeen
			s.mu.Unlock()
			if quiet {
				if err := s.writeFrame(protocol.NewRequestChallenge()); err != nil {
					s.log.Debug("challenge request failed", slog.Any("error", err))
				}
			}

		case <-poll.C:
			s.mu.Lock()
			stale := gen != s.gen
			phase := s.phase
			lastErr := s.lastErr
			s.mu.Unlock()

			if stale || phase == PhaseDisconnected {
				return fmt.Errorf("%w: socket closed during authentication", ErrConnectionLost)
			}
			switch phase {
			case PhaseAuthenticated:
				return nil
			case PhaseFailed:
				return fmt.Errorf("%w: %s", ErrAuthFailed, lastErr)
			}
		}
	}
}

func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	liveness := 2 * s.opts.HeartbeatInterval
	for {
		if err := conn.SetReadDeadline(time.Now().Add(liveness)); err != nil {
			s.teardown(gen, err, true)
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.teardown(gen, err, true)
			return
		}
		s.processInbound(raw)
	}
}

func (s *Session) heartbeat(conn *websocket.Conn, gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			if err != nil {
				s.teardown(gen, err, true)
				return
			}
		}
	}
}

// processInbound runs the inbound pipeline for one frame: schema parse,
// dedup, signature verification, dispatch. Frames are handled strictly in
// arrival order; each handler runs to completion before the next frame.
func (s *Session) processInbound(raw []byte) {
	msg, err := protocol.Parse(raw)
	if err != nil {
		s.log.Debug("dropping malformed frame", slog.Any("error", err))
		s.emitter.Emit(events.MessageError, err)
		return
	}

	if msg.ID != "" && s.opts.Dedup != nil && s.opts.Dedup.Seen(msg.ID) {
		s.emitter.Emit(events.MessageDuplicate, DuplicateEvent{ID: msg.ID, Type: msg.Type})
		return
	}

	if !s.verifyInbound(msg) {
		return
	}

	s.handlers.Dispatch(msg, &Context{s: s})
}

// teardown closes the socket for generation gen and resets session state.
// Stale generations are no-ops, so racing callers (read loop, heartbeat,
// Connect, Close) collapse to a single teardown per socket. allowReconnect
// is true only for unexpected closes.
func (s *Session) teardown(gen uint64, cause error, allowReconnect bool) {
	s.mu.Lock()
	if gen != s.gen || s.conn == nil {
		s.mu.Unlock()
		return
	}
	s.gen++
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.auth = AuthState{}
	s.phase = PhaseDisconnected
	if cause != nil {
		s.lastErr = cause.Error()
	}
	hbStop := s.heartbeatStop
	s.heartbeatStop = nil
	closedByUser := s.closedByUser
	reconnect := allowReconnect && s.opts.ReconnectEnabled && !closedByUser
	var stopCh chan struct{}
	if reconnect && s.stopReconnect == nil {
		stopCh = make(chan struct{})
		s.stopReconnect = stopCh
		s.reconnecting = true
	}
	s.mu.Unlock()

	if hbStop != nil {
		close(hbStop)
	}
	_ = conn.Close()

	s.pending.FailAll(ErrConnectionLost)

	// Server-side subscriptions die with the socket; the local mirror is
	// repopulated by acks after re-auth.
	if s.opts.Rooms != nil {
		s.opts.Rooms.SetSubscriptions(nil)
	}

	if cause != nil && !closedByUser {
		s.emitter.Emit(events.ConnectionError, cause)
	}
	s.emitter.Emit(events.ConnectionClose, nil)
	s.emitAuthState()
	s.emitConnectionState()

	if stopCh != nil {
		go s.reconnectLoop(stopCh)
	}
}

// reconnectLoop re-dials with backoff until re-authenticated, the attempt
// budget is exhausted, or the session is stopped.
func (s *Session) reconnectLoop(stop chan struct{}) {
	for attempt := 1; attempt <= s.opts.ReconnectMaxAttempts; attempt++ {
		delay := s.opts.ReconnectStrategy.NextInterval(attempt)

		s.mu.Lock()
		s.reconnectTries = attempt
		s.mu.Unlock()
		s.emitter.Emit(events.ConnectionReconnecting, ReconnectingEvent{Attempt: attempt, Delay: delay})
		s.emitConnectionState()

		select {
		case <-stop:
			return
		case <-time.After(delay):
		}

		err := s.connect(context.Background())
		if err == nil {
			s.mu.Lock()
			s.reconnecting = false
			s.reconnectTries = 0
			s.stopReconnect = nil
			s.mu.Unlock()
			s.emitter.Emit(events.ConnectionReconnected, nil)
			s.emitConnectionState()
			return
		}

		s.log.Warn("reconnect attempt failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		select {
		case <-stop:
			return
		default:
		}
	}

	s.mu.Lock()
	s.reconnecting = false
	s.stopReconnect = nil
	s.mu.Unlock()

	err := fmt.Errorf("%w: gave up after %d attempts", ErrReconnectExhausted, s.opts.ReconnectMaxAttempts)
	s.emitter.Emit(events.Error, err)
	s.emitConnectionState()
}

// Send writes a frame without awaiting a reply. The send path is guarded
// by the rate limiter.
func (s *Session) Send(msg *protocol.Message) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if s.opts.Limiter != nil && !s.opts.Limiter.TryAcquire() {
		return ErrRateLimited
	}
	if err := s.writeFrame(msg); err != nil {
		return err
	}
	s.emitter.Emit(events.MessageSent, msg)
	return nil
}

// Request writes a frame and blocks until a correlated reply arrives or
// the timeout elapses. requestID must be the client_request_id stamped
// into the frame; explicitAgent excludes the request from room fallback
// correlation.
func (s *Session) Request(ctx context.Context, msg *protocol.Message, requestID, room string, explicitAgent bool, timeout time.Duration) (*protocol.AgentResponse, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}
	if s.opts.Limiter != nil && !s.opts.Limiter.TryAcquire() {
		return nil, ErrRateLimited
	}
	if timeout <= 0 {
		timeout = s.opts.MessageTimeout
	}

	p := s.pending.Add(requestID, room, explicitAgent)
	if err := s.writeFrame(msg); err != nil {
		s.pending.Fail(requestID, err)
		return nil, err
	}
	s.emitter.Emit(events.MessageSent, msg)
	return p.Wait(ctx, timeout)
}

// writeFrame serializes msg onto the socket. Writes never interleave.
func (s *Session) writeFrame(msg *protocol.Message) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// Close shuts the session down: no further reconnection, pending requests
// rejected, socket closed with a normal-closure frame. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closedByUser {
		s.mu.Unlock()
		return
	}
	s.closedByUser = true
	if s.stopReconnect != nil {
		close(s.stopReconnect)
		s.stopReconnect = nil
		s.reconnecting = false
	}
	conn := s.conn
	gen := s.gen
	s.mu.Unlock()

	if conn != nil {
		closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(writeTimeout))
	}
	s.teardown(gen, nil, false)
	s.pending.FailAll(ErrClosed)
	s.emitter.Emit(events.Disconnect, nil)
}

// SetResponseFormat selects how agent responses are shaped before they
// are surfaced: raw only, humanized only, or both.
func (s *Session) SetResponseFormat(format ResponseFormat, includeMetadata bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	s.includeMeta = includeMetadata
}

// Connected reports whether a socket is currently open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Authenticated reports whether the handshake has completed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseAuthenticated
}

// Phase returns the current authentication state machine position.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// ConnectionSnapshot returns a copy of the connection state.
func (s *Session) ConnectionSnapshot() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ConnectionState{
		Connected:         s.connected,
		Authenticated:     s.phase == PhaseAuthenticated,
		Reconnecting:      s.reconnecting,
		ReconnectAttempts: s.reconnectTries,
		LastConnectedAt:   s.lastConnected,
		LastError:         s.lastErr,
	}
}

// AuthSnapshot returns a copy of the authenticated identity.
func (s *Session) AuthSnapshot() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.auth
	snap.Rooms = append([]string(nil), s.auth.Rooms...)
	snap.RoomObjects = append([]protocol.Room(nil), s.auth.RoomObjects...)
	return snap
}

// PendingCount returns the number of in-flight awaited requests.
func (s *Session) PendingCount() int {
	return s.pending.Len()
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) emitConnectionState() {
	s.emitter.Emit(events.ConnectionState, s.ConnectionSnapshot())
}

func (s *Session) emitAuthState() {
	s.emitter.Emit(events.AuthState, s.AuthSnapshot())
}

func (s *Session) responseFormat() (ResponseFormat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format, s.includeMeta
}
