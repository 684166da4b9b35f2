package transport

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teneolabs/teneo-go/pkg/events"
	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/registry"
)

// Handler validates a frame of its declared type and applies it through
// the Context. Handlers never mutate session state directly and never
// hold references to one another.
type Handler interface {
	Type() protocol.MessageType
	Handle(msg *protocol.Message, ctx *Context) error
}

// HandlerRegistry maps type tags to handlers. Unknown types are a debug
// no-op; a handler error becomes a message:error event, never a crash.
type HandlerRegistry struct {
	logger   *slog.Logger
	handlers map[protocol.MessageType]Handler
}

func newHandlerRegistry(logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		logger:   logger,
		handlers: make(map[protocol.MessageType]Handler),
	}
}

// Register installs h for its declared type, replacing any prior handler.
func (r *HandlerRegistry) Register(h Handler) {
	r.handlers[h.Type()] = h
}

// Dispatch routes msg to its handler.
func (r *HandlerRegistry) Dispatch(msg *protocol.Message, ctx *Context) {
	h, ok := r.handlers[msg.Type]
	if !ok {
		r.logger.Debug("ignoring unknown message type", slog.String("type", string(msg.Type)))
		return
	}
	if err := h.Handle(msg, ctx); err != nil {
		r.logger.Debug("handler rejected frame",
			slog.String("type", string(msg.Type)),
			slog.Any("error", err),
		)
		ctx.Emit(events.MessageError, err)
	}
}

func registerDefaultHandlers(r *HandlerRegistry) {
	r.Register(challengeHandler{})
	r.Register(authHandler{tag: protocol.TypeAuth})
	r.Register(authHandler{tag: protocol.TypeAuthSuccess})
	r.Register(authErrorHandler{})
	r.Register(authRequiredHandler{})
	r.Register(agentsHandler{})
	r.Register(agentSelectedHandler{})
	r.Register(taskResponseHandler{})
	r.Register(chatHandler{})
	r.Register(subscriptionHandler{tag: protocol.TypeSubscribe})
	r.Register(subscriptionHandler{tag: protocol.TypeUnsubscribe})
	r.Register(roomListHandler{})
	r.Register(serverErrorHandler{})
	r.Register(pingHandler{})
	r.Register(pongHandler{})
}

// Context is the narrow capability surface handlers act through: event
// emission, state mutation helpers, webhook enqueue, replies to the
// server, and read-only views of session state.
type Context struct {
	s *Session
}

// Emit publishes an event on the session's event surface.
func (c *Context) Emit(event events.Event, payload any) {
	c.s.emitter.Emit(event, payload)
}

// Logger returns the session logger.
func (c *Context) Logger() *slog.Logger {
	return c.s.log
}

// Reply writes a frame back to the server, bypassing the rate limiter.
// Protocol-mandated replies (auth, pong) must not be starved by it.
func (c *Context) Reply(msg *protocol.Message) error {
	return c.s.writeFrame(msg)
}

// EnqueueWebhook mirrors an event to the webhook dispatcher,
// fire-and-forget.
func (c *Context) EnqueueWebhook(event string, data any, metadata map[string]any) {
	if c.s.opts.Webhooks != nil {
		c.s.opts.Webhooks.Enqueue(event, data, metadata)
	}
}

// Agents returns the agent registry, nil when not configured.
func (c *Context) Agents() *registry.AgentRegistry {
	return c.s.opts.Agents
}

// Rooms returns the room registry, nil when not configured.
func (c *Context) Rooms() *registry.RoomRegistry {
	return c.s.opts.Rooms
}

// SelfAddress returns the client's 0x-hex address.
func (c *Context) SelfAddress() string {
	return c.s.opts.Signer.Address().Hex()
}

// IsSelf reports whether address is the client's own, ignoring case.
func (c *Context) IsSelf(address string) bool {
	return strings.EqualFold(address, c.SelfAddress())
}

// Connection returns a copy of the connection state.
func (c *Context) Connection() ConnectionState {
	return c.s.ConnectionSnapshot()
}

// Auth returns a copy of the auth state.
func (c *Context) Auth() AuthState {
	return c.s.AuthSnapshot()
}

// BindTask records the task id the coordinator assigned to a pending
// request.
func (c *Context) BindTask(requestID, taskID string) bool {
	return c.s.pending.BindTask(requestID, taskID)
}

// markChallenge records the received challenge and moves the state
// machine into SIGNING.
func (c *Context) markChallenge(challenge string) {
	s := c.s
	s.mu.Lock()
	s.challengeSeen = true
	s.auth.Challenge = challenge
	if s.phase == PhaseAwaitingAuth {
		s.phase = PhaseSigning
	}
	s.mu.Unlock()
}

// markAuthSent moves the state machine into AWAITING_AUTH_RESULT after
// the signed auth frame went out.
func (c *Context) markAuthSent() {
	s := c.s
	s.mu.Lock()
	if s.phase == PhaseSigning {
		s.phase = PhaseAwaitingAuthResult
	}
	s.mu.Unlock()
}

// markAuthenticated populates AuthState from the server identity fields,
// seeds the room registry, and emits auth:success followed by ready.
// Idempotent for repeated auth frames.
func (c *Context) markAuthenticated(res *protocol.AuthResult) {
	s := c.s

	s.mu.Lock()
	if s.phase == PhaseAuthenticated {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseAuthenticated

	address := res.Address
	if address == "" {
		address = s.opts.Signer.Address().Hex()
	}
	roomIDs := make([]string, 0, len(res.Rooms))
	for _, room := range res.Rooms {
		roomIDs = append(roomIDs, room.ID)
	}
	s.auth = AuthState{
		Authenticated: true,
		ClientID:      res.ID,
		WalletAddress: address,
		IsWhitelisted: res.IsWhitelisted,
		IsAdmin:       res.IsAdminWhitelisted,
		NFTVerified:   res.NFTVerified,
		Rooms:         roomIDs,
		RoomObjects:   append([]protocol.Room(nil), res.Rooms...),
		PrivateRoomID: res.PrivateRoomID,
		Challenge:     s.auth.Challenge,
	}
	s.mu.Unlock()

	if rooms := s.opts.Rooms; rooms != nil {
		rooms.SetRooms(res.Rooms)
		if res.PrivateRoomID != "" {
			rooms.SetPrivateRoomID(res.PrivateRoomID)
		}
	}

	s.emitter.Emit(events.AuthSuccess, s.AuthSnapshot())
	s.emitAuthState()
	s.emitConnectionState()
	s.emitter.Emit(events.Ready, nil)
}

// markAuthFailed records a failed handshake and emits auth:error.
func (c *Context) markAuthFailed(reason string) {
	s := c.s
	s.mu.Lock()
	s.phase = PhaseFailed
	s.auth.Authenticated = false
	s.lastErr = reason
	s.mu.Unlock()

	s.emitter.Emit(events.AuthError, fmt.Errorf("%w: %s", ErrAuthFailed, reason))
	s.emitAuthState()
}

type challengeHandler struct{}

func (challengeHandler) Type() protocol.MessageType { return protocol.TypeChallenge }

// Handle signs the challenge over the fixed prefix and answers with an
// auth frame. A sign failure is fatal for this connect attempt.
func (challengeHandler) Handle(msg *protocol.Message, ctx *Context) error {
	data, err := protocol.DecodeChallenge(msg)
	if err != nil {
		return err
	}

	ctx.markChallenge(data.Challenge)
	ctx.Emit(events.AuthChallenge, data.Challenge)

	signedMessage := protocol.ChallengePrefix + data.Challenge
	signature, err := ctx.s.opts.Signer.SignText(signedMessage)
	if err != nil {
		ctx.markAuthFailed("signing challenge: " + err.Error())
		return nil
	}

	frame := protocol.NewAuth(ctx.SelfAddress(), signature, signedMessage, ctx.s.opts.ClientType)
	if err := ctx.Reply(frame); err != nil {
		ctx.markAuthFailed("sending auth frame: " + err.Error())
		return nil
	}
	ctx.markAuthSent()
	return nil
}

// authHandler covers both auth and the legacy auth_success tag. An auth
// frame counts as successful authentication when it carries identity
// fields, a cached-auth flag, or is addressed to this client.
type authHandler struct {
	tag protocol.MessageType
}

func (h authHandler) Type() protocol.MessageType { return h.tag }

func (h authHandler) Handle(msg *protocol.Message, ctx *Context) error {
	res, err := protocol.DecodeAuthResult(msg)
	if err != nil {
		return err
	}

	if res.Error != "" {
		ctx.markAuthFailed(res.Error)
		return nil
	}

	identified := res.ID != "" || res.Address != "" || res.CachedAuth ||
		h.tag == protocol.TypeAuthSuccess ||
		(msg.To != "" && ctx.IsSelf(msg.To))
	if !identified {
		ctx.Logger().Debug("ignoring auth frame without identity fields")
		return nil
	}

	ctx.markAuthenticated(res)
	return nil
}

type authErrorHandler struct{}

func (authErrorHandler) Type() protocol.MessageType { return protocol.TypeAuthError }

func (authErrorHandler) Handle(msg *protocol.Message, ctx *Context) error {
	res, err := protocol.DecodeAuthResult(msg)
	if err != nil {
		return err
	}
	reason := res.Error
	if reason == "" {
		reason = msg.Content
	}
	if reason == "" {
		reason = "authentication rejected"
	}
	ctx.markAuthFailed(reason)
	return nil
}

type authRequiredHandler struct{}

func (authRequiredHandler) Type() protocol.MessageType { return protocol.TypeAuthRequired }

func (authRequiredHandler) Handle(msg *protocol.Message, ctx *Context) error {
	ctx.Emit(events.AuthRequired, nil)
	return nil
}

type agentsHandler struct{}

func (agentsHandler) Type() protocol.MessageType { return protocol.TypeAgents }

// Handle replaces the registry contents wholesale; the registry change
// hook emits agent:list.
func (agentsHandler) Handle(msg *protocol.Message, ctx *Context) error {
	data, err := protocol.DecodeAgents(msg)
	if err != nil {
		return err
	}
	if agents := ctx.Agents(); agents != nil {
		agents.Replace(data.Agents)
	}
	return nil
}

type agentSelectedHandler struct{}

func (agentSelectedHandler) Type() protocol.MessageType { return protocol.TypeAgentSelected }

func (agentSelectedHandler) Handle(msg *protocol.Message, ctx *Context) error {
	data, err := protocol.DecodeAgentSelected(msg)
	if err != nil {
		return err
	}

	if data.ClientRequestID != "" && data.TaskID != "" {
		ctx.BindTask(data.ClientRequestID, data.TaskID)
	}

	ctx.Emit(events.AgentSelected, data)
	ctx.EnqueueWebhook("agent_selected", data, webhookMetadata(msg))
	return nil
}

type taskResponseHandler struct{}

func (taskResponseHandler) Type() protocol.MessageType { return protocol.TypeTaskResponse }

func (taskResponseHandler) Handle(msg *protocol.Message, ctx *Context) error {
	data, err := protocol.DecodeTaskResponse(msg)
	if err != nil {
		return err
	}

	resp := buildAgentResponse(msg, data)
	ctx.s.applyResponseFormat(resp)

	// Correlation order: request id echo, then bound task id, then the
	// room fallback for requests that did not name an explicit agent.
	resolved := ctx.s.pending.ResolveByRequestID(data.ClientRequestID, resp)
	if !resolved {
		resolved = ctx.s.pending.ResolveByTaskID(data.TaskID, resp)
	}
	if !resolved {
		ctx.s.pending.ResolveFallback(msg.Room, msg.From, ctx.SelfAddress(), resp)
	}

	ctx.Emit(events.AgentResponse, resp)
	ctx.EnqueueWebhook("task_response", resp, webhookMetadata(msg))
	return nil
}

// chatHandler treats message frames from other parties as agent-originated
// responses. Frames echoing the client's own sends are ignored.
type chatHandler struct{}

func (chatHandler) Type() protocol.MessageType { return protocol.TypeMessage }

func (chatHandler) Handle(msg *protocol.Message, ctx *Context) error {
	if msg.From == "" || ctx.IsSelf(msg.From) {
		return nil
	}

	ctx.Emit(events.MessageReceived, msg)

	resp := &protocol.AgentResponse{
		AgentID:     msg.From,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		Success:     true,
		Timestamp:   stampTime(msg.Timestamp),
		Raw:         msg,
		Humanized:   msg.Content,
	}
	ctx.s.applyResponseFormat(resp)
	ctx.Emit(events.AgentResponse, resp)
	return nil
}

// subscriptionHandler covers subscribe and unsubscribe acknowledgements.
// The subscribed-room set is replaced wholesale from the server's
// authoritative subscriptions field; it is never updated speculatively.
type subscriptionHandler struct {
	tag protocol.MessageType
}

func (h subscriptionHandler) Type() protocol.MessageType { return h.tag }

func (h subscriptionHandler) Handle(msg *protocol.Message, ctx *Context) error {
	ack, err := protocol.DecodeSubscriptionAck(msg)
	if err != nil {
		return err
	}

	if !ack.Succeeded() {
		ctx.Emit(events.Error, fmt.Errorf("%w: %s %s: %s", ErrServerError, h.tag, ack.RoomID, ack.Error))
		return nil
	}

	if rooms := ctx.Rooms(); rooms != nil {
		rooms.SetSubscriptions(ack.Subscriptions)
	}

	if h.tag == protocol.TypeSubscribe {
		ctx.Emit(events.RoomSubscribed, ack)
		ctx.EnqueueWebhook("room_subscribed", ack, webhookMetadata(msg))
	} else {
		ctx.Emit(events.RoomUnsubscribed, ack)
		ctx.EnqueueWebhook("room_unsubscribed", ack, webhookMetadata(msg))
	}
	return nil
}

type roomListHandler struct{}

func (roomListHandler) Type() protocol.MessageType { return protocol.TypeListRooms }

func (roomListHandler) Handle(msg *protocol.Message, ctx *Context) error {
	data, err := protocol.DecodeRoomList(msg)
	if err != nil {
		return err
	}

	if rooms := ctx.Rooms(); rooms != nil {
		rooms.SetRooms(data.Rooms)
	}

	ctx.Emit(events.RoomList, data.Rooms)
	ctx.EnqueueWebhook("room_list", data, webhookMetadata(msg))
	return nil
}

// serverErrorHandler surfaces error frames without touching connection or
// auth state. Errors correlated to an in-flight request reject it.
type serverErrorHandler struct{}

func (serverErrorHandler) Type() protocol.MessageType { return protocol.TypeError }

func (serverErrorHandler) Handle(msg *protocol.Message, ctx *Context) error {
	data, err := protocol.DecodeServerError(msg)
	if err != nil {
		return err
	}

	serverErr := fmt.Errorf("%w: %s", ErrServerError, data.Message)
	if data.ClientRequestID != "" {
		ctx.s.pending.Fail(data.ClientRequestID, serverErr)
	}
	ctx.Emit(events.Error, serverErr)
	return nil
}

type pingHandler struct{}

func (pingHandler) Type() protocol.MessageType { return protocol.TypePing }

func (pingHandler) Handle(msg *protocol.Message, ctx *Context) error {
	return ctx.Reply(protocol.NewPong())
}

type pongHandler struct{}

func (pongHandler) Type() protocol.MessageType { return protocol.TypePong }

func (pongHandler) Handle(msg *protocol.Message, ctx *Context) error {
	return nil
}

func buildAgentResponse(msg *protocol.Message, data *protocol.TaskResponseData) *protocol.AgentResponse {
	return &protocol.AgentResponse{
		TaskID:      data.TaskID,
		AgentID:     msg.From,
		AgentName:   data.AgentName,
		Content:     data.Content,
		ContentType: data.ContentType,
		Success:     data.Succeeded(),
		Error:       data.Error,
		Timestamp:   stampTime(msg.Timestamp),
		Raw:         msg,
		Humanized:   data.Content,
	}
}

// applyResponseFormat shapes resp per the configured response format: raw
// drops the humanized string, humanized drops the raw envelope, both
// keeps everything. Outside raw mode the envelope is also dropped when
// metadata was not requested.
func (s *Session) applyResponseFormat(resp *protocol.AgentResponse) {
	format, includeMeta := s.responseFormat()

	switch format {
	case FormatRaw:
		resp.Humanized = ""
	case FormatHumanized:
		resp.Raw = nil
	}
	if !includeMeta && format != FormatRaw {
		resp.Raw = nil
	}
}

func webhookMetadata(msg *protocol.Message) map[string]any {
	meta := make(map[string]any, 3)
	if msg.ID != "" {
		meta["message_id"] = msg.ID
	}
	if msg.Room != "" {
		meta["room"] = msg.Room
	}
	if msg.From != "" {
		meta["from"] = msg.From
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func stampTime(unixMilli int64) time.Time {
	if unixMilli <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(unixMilli).UTC()
}
