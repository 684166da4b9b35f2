package teneo

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teneolabs/teneo-go/pkg/dedup"
	"github.com/teneolabs/teneo-go/pkg/events"
	"github.com/teneolabs/teneo-go/pkg/logger"
	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/ratelimit"
	"github.com/teneolabs/teneo-go/pkg/registry"
	"github.com/teneolabs/teneo-go/pkg/secret"
	"github.com/teneolabs/teneo-go/pkg/signer"
	"github.com/teneolabs/teneo-go/pkg/transport"
	"github.com/teneolabs/teneo-go/pkg/webhook"
)

// Client is the public surface of the SDK. It composes the transport
// session, the agent and room registries, the webhook dispatcher, and the
// event emitter behind a single object built from one Config.
type Client struct {
	cfg     Config
	log     *slog.Logger
	emitter *events.Emitter
	sec     *secret.Secret
	oracle  *signer.Oracle

	agents     *registry.AgentRegistry
	rooms      *registry.RoomRegistry
	dedupCache *dedup.Cache
	limiter    *ratelimit.Limiter
	dispatcher *webhook.Dispatcher
	session    *transport.Session

	mu        sync.Mutex
	destroyed bool
}

// Health is a point-in-time view across all components, for liveness
// probes and dashboards.
type Health struct {
	Connection transport.ConnectionState `json:"connection"`
	Auth       transport.AuthState       `json:"auth"`
	Webhook    webhook.Status            `json:"webhook"`
	Pending    int                       `json:"pending_requests"`

	DedupSize     int    `json:"dedup_size"`
	DedupHits     uint64 `json:"dedup_hits"`
	RateTokens    int    `json:"rate_tokens"`
	RateRejected  uint64 `json:"rate_rejected"`
	ListenerCount int    `json:"-"`
}

// NewClient builds a Client from cfg. The secret comes from
// cfg.SecretHex, WithSecretBytes, or WithSecret, in that order of
// precedence reversed: an explicit option wins over the environment.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.URL == "" {
		return nil, validationError("url is required")
	}
	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return nil, validationError("url must use the ws or wss scheme, got %q", cfg.URL)
	}

	sec, err := resolveSecret(cfg, &o)
	if err != nil {
		return nil, err
	}
	oracle, err := signer.New(sec)
	if err != nil {
		sec.Destroy()
		return nil, newError(CodeAuthentication, false, err)
	}
	if cfg.ExpectedAddress != "" && !strings.EqualFold(cfg.ExpectedAddress, oracle.Address().Hex()) {
		sec.Destroy()
		return nil, newError(CodeAuthentication, false,
			fmt.Errorf("secret derives address %s, expected %s", oracle.Address().Hex(), cfg.ExpectedAddress))
	}

	log := o.logger
	if log == nil {
		log = logger.New(logger.WithLevelTag(cfg.LogLevel), logger.WithAttr(logger.Component("teneo")))
	}

	format, ok := parseFormat(cfg.Response.Format)
	if !ok {
		sec.Destroy()
		return nil, validationError("unknown response format %q", cfg.Response.Format)
	}

	c := &Client{
		cfg:    cfg,
		log:    log,
		sec:    sec,
		oracle: oracle,
		agents: registry.NewAgentRegistry(),
		rooms:  registry.NewRoomRegistry(),
	}
	c.emitter = events.NewEmitter(log)

	if cfg.Dedup.Enabled {
		c.dedupCache = dedup.New(time.Duration(cfg.Dedup.TTLMS)*time.Millisecond, cfg.Dedup.MaxSize)
	}
	if cfg.RateLimit.Enabled {
		c.limiter, err = ratelimit.New(ratelimit.Config{
			RefillRate: cfg.RateLimit.Rate,
			Capacity:   cfg.RateLimit.Burst,
		})
		if err != nil {
			sec.Destroy()
			return nil, validationError("rate limit config: %v", err)
		}
	}

	retry := o.retryStrategy
	if retry == nil {
		retry = cfg.Webhook.retryStrategy()
	}
	c.dispatcher = webhook.NewDispatcher(webhook.Config{
		QueueCapacity: cfg.Webhook.QueueCapacity,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
		Strategy:      retry,
		AllowInsecure: cfg.Webhook.AllowInsecure,
	}, c.emitter.Emit, log)

	c.session, err = transport.New(transport.Options{
		URL:        cfg.URL,
		Signer:     oracle,
		ClientType: cfg.ClientType,
		Emitter:    c.emitter,
		Logger:     log,
		Agents:     c.agents,
		Rooms:      c.rooms,
		Dedup:      c.dedupCache,
		Limiter:    c.limiter,
		Webhooks:   c.dispatcher,
		Verification: transport.VerifyConfig{
			Enabled:          cfg.Verify.Enabled,
			TrustedAddresses: cfg.Verify.TrustedAddresses,
			RequireFor:       cfg.Verify.requireFor(),
			StrictMode:       cfg.Verify.StrictMode,
		},
		ConnectTimeout:       time.Duration(cfg.ConnectionTimeoutMS) * time.Millisecond,
		AuthTimeout:          o.tuning.AuthTimeout,
		MessageTimeout:       time.Duration(cfg.MessageTimeoutMS) * time.Millisecond,
		HeartbeatInterval:    o.tuning.HeartbeatInterval,
		CachedAuthWait:       o.tuning.CachedAuthWait,
		AuthPollInterval:     o.tuning.AuthPollInterval,
		ReconnectEnabled:     cfg.Reconnect.Enabled,
		ReconnectStrategy:    cfg.Reconnect.reconnectStrategy(),
		ReconnectMaxAttempts: cfg.Reconnect.MaxAttempts,
		Dialer:               o.dialer,
	})
	if err != nil {
		c.dispatcher.Close()
		sec.Destroy()
		return nil, classify(err)
	}

	c.session.SetResponseFormat(format, cfg.Response.IncludeMetadata)
	return c, nil
}

func resolveSecret(cfg Config, o *options) (*secret.Secret, error) {
	if o.secret != nil {
		return o.secret, nil
	}
	if len(o.secretBytes) > 0 {
		sec, err := secret.New(o.secretBytes)
		if err != nil {
			return nil, newError(CodeAuthentication, false, err)
		}
		return sec, nil
	}
	if cfg.SecretHex == "" {
		return nil, validationError("signing secret is required")
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(cfg.SecretHex, "0x"))
	if err != nil {
		return nil, validationError("secret hex: %v", err)
	}
	sec, err := secret.New(raw)
	if err != nil {
		return nil, newError(CodeAuthentication, false, err)
	}
	return sec, nil
}

// Connect opens the socket and completes authentication. It returns once
// the session is ready, or with the classifying error.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.alive(); err != nil {
		return err
	}
	return classify(c.session.Connect(ctx))
}

// Disconnect shuts the session down cleanly. No further reconnection is
// attempted; pending requests fail with a connection error.
func (c *Client) Disconnect() {
	c.session.Close()
}

// Destroy releases every resource the client holds: the session, the
// webhook worker, all listeners, and the sealed secret. Terminal and
// idempotent; Destroy supersedes Disconnect.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	c.session.Close()
	c.dispatcher.Close()
	c.agents.Clear()
	c.rooms.Clear()
	c.emitter.Emit(events.Destroy, nil)
	c.emitter.Close()
	c.sec.Destroy()
}

func (c *Client) alive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return newError(CodeConnection, false, transport.ErrClosed)
	}
	return nil
}

// SendOption shapes a single SendMessage or SendDirectCommand call.
type SendOption func(*sendOptions)

type sendOptions struct {
	room        string
	contentType string
	targetAgent string
	wait        bool
	timeout     time.Duration
}

// ToRoom routes the message to a specific room instead of the private
// room.
func ToRoom(id string) SendOption {
	return func(o *sendOptions) { o.room = id }
}

// WithContentType sets the outbound content type (default "text").
func WithContentType(ct string) SendOption {
	return func(o *sendOptions) { o.contentType = ct }
}

// ToAgent targets a specific agent, bypassing coordinator selection.
func ToAgent(id string) SendOption {
	return func(o *sendOptions) { o.targetAgent = id }
}

// WaitForResponse blocks the call until a correlated agent response
// arrives or the timeout elapses.
func WaitForResponse() SendOption {
	return func(o *sendOptions) { o.wait = true }
}

// WithTimeout bounds a WaitForResponse call. Zero falls back to the
// configured message timeout.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = d }
}

// SendMessage routes content through the coordinator, or directly when
// ToAgent is given. With WaitForResponse it returns the correlated agent
// response; otherwise it returns nil immediately after the frame is
// written.
func (c *Client) SendMessage(ctx context.Context, content string, opts ...SendOption) (*protocol.AgentResponse, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, validationError("message content is empty")
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	room := o.room
	if room == "" {
		room = c.rooms.PrivateRoomID()
	}

	requestID := protocol.NewRequestID()
	msg := protocol.NewChat(content, o.contentType, room, requestID, o.targetAgent)

	if !o.wait {
		return nil, classify(c.session.Send(msg))
	}
	resp, err := c.session.Request(ctx, msg, requestID, room, o.targetAgent != "", o.timeout)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

// DirectCommand is an explicit agent invocation.
type DirectCommand struct {
	Agent   string
	Command string
	Room    string
}

// SendDirectCommand sends a task frame to a named agent. Same waiting
// semantics as SendMessage with ToAgent.
func (c *Client) SendDirectCommand(ctx context.Context, cmd DirectCommand, opts ...SendOption) (*protocol.AgentResponse, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if cmd.Agent == "" {
		return nil, validationError("direct command requires an agent")
	}
	if cmd.Command == "" {
		return nil, validationError("direct command requires a command")
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	room := cmd.Room
	if room == "" {
		room = c.rooms.PrivateRoomID()
	}

	requestID := protocol.NewRequestID()
	msg := protocol.NewTask(cmd.Agent, cmd.Command, room, requestID)

	if !o.wait {
		return nil, classify(c.session.Send(msg))
	}
	resp, err := c.session.Request(ctx, msg, requestID, room, true, o.timeout)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

// SubscribeToRoom asks the coordinator to add a room subscription. The
// registry updates only when the acknowledgement arrives.
func (c *Client) SubscribeToRoom(roomID string) error {
	if err := c.alive(); err != nil {
		return err
	}
	if roomID == "" {
		return validationError("room id is empty")
	}
	return classify(c.session.Send(protocol.NewSubscribe(roomID)))
}

// UnsubscribeFromRoom asks the coordinator to drop a room subscription.
func (c *Client) UnsubscribeFromRoom(roomID string) error {
	if err := c.alive(); err != nil {
		return err
	}
	if roomID == "" {
		return validationError("room id is empty")
	}
	return classify(c.session.Send(protocol.NewUnsubscribe(roomID)))
}

// ListRooms requests the room catalog and blocks until it arrives or the
// message timeout elapses.
func (c *Client) ListRooms(ctx context.Context) ([]protocol.Room, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}

	ch := make(chan []protocol.Room, 1)
	sub := c.emitter.Once(events.RoomList, func(payload any) {
		if rooms, ok := payload.([]protocol.Room); ok {
			select {
			case ch <- rooms:
			default:
			}
		}
	})

	if err := c.session.Send(protocol.NewListRooms()); err != nil {
		c.emitter.Off(events.RoomList, sub)
		return nil, classify(err)
	}

	timer := time.NewTimer(time.Duration(c.cfg.MessageTimeoutMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case rooms := <-ch:
		return rooms, nil
	case <-ctx.Done():
		c.emitter.Off(events.RoomList, sub)
		return nil, newError(CodeConnection, true, ctx.Err())
	case <-timer.C:
		c.emitter.Off(events.RoomList, sub)
		return nil, newError(CodeTimeout, true, transport.ErrTimeout)
	}
}

// GetSubscribedRooms returns the ids of rooms the server has acknowledged
// subscriptions for.
func (c *Client) GetSubscribedRooms() []string {
	return c.rooms.Subscribed()
}

// GetRooms returns the known room catalog.
func (c *Client) GetRooms() []protocol.Room {
	return c.rooms.Rooms()
}

// GetRoom looks a room up by id.
func (c *Client) GetRoom(id string) (protocol.Room, bool) {
	return c.rooms.Room(id)
}

// GetAgents returns a copy of the current agent list.
func (c *Client) GetAgents() []protocol.Agent {
	return c.agents.All()
}

// GetAgent looks an agent up by id.
func (c *Client) GetAgent(id string) (protocol.Agent, bool) {
	return c.agents.Get(id)
}

// FindAgentsByCapability returns agents advertising the named capability.
func (c *Client) FindAgentsByCapability(name string) []protocol.Agent {
	return c.agents.FindByCapability(name)
}

// FindAgentsByName returns agents whose name contains the fragment.
func (c *Client) FindAgentsByName(fragment string) []protocol.Agent {
	return c.agents.FindByName(fragment)
}

// FindAgentsByStatus returns agents with the given status.
func (c *Client) FindAgentsByStatus(status string) []protocol.Agent {
	return c.agents.FindByStatus(status)
}

// GetConnectionState returns a snapshot of the connection.
func (c *Client) GetConnectionState() transport.ConnectionState {
	return c.session.ConnectionSnapshot()
}

// GetAuthState returns a snapshot of the authentication state.
func (c *Client) GetAuthState() transport.AuthState {
	return c.session.AuthSnapshot()
}

// GetHealth aggregates component state for health reporting.
func (c *Client) GetHealth() Health {
	h := Health{
		Connection: c.session.ConnectionSnapshot(),
		Auth:       c.session.AuthSnapshot(),
		Webhook:    c.dispatcher.Status(),
		Pending:    c.session.PendingCount(),
	}
	if c.dedupCache != nil {
		h.DedupSize = c.dedupCache.Len()
		h.DedupHits = c.dedupCache.Hits()
	}
	if c.limiter != nil {
		h.RateTokens = c.limiter.Tokens()
		h.RateRejected = c.limiter.Rejected()
	}
	return h
}

// ConfigureWebhook atomically replaces the webhook delivery target. A URL
// that fails validation disables the dispatcher until reconfigured.
func (c *Client) ConfigureWebhook(url string, headers map[string]string) error {
	if err := c.alive(); err != nil {
		return err
	}
	return classify(c.dispatcher.Configure(url, headers))
}

// GetWebhookStatus returns the dispatcher's point-in-time status.
func (c *Client) GetWebhookStatus() webhook.Status {
	return c.dispatcher.Status()
}

// ClearWebhookQueue drops all queued deliveries and cancels scheduled
// retries, returning the number removed.
func (c *Client) ClearWebhookQueue() int {
	return c.dispatcher.ClearQueue()
}

// SetResponseFormat selects how agent responses are shaped: "raw",
// "humanized", or "both".
func (c *Client) SetResponseFormat(format string, includeMetadata bool) error {
	f, ok := parseFormat(format)
	if !ok {
		return validationError("unknown response format %q", format)
	}
	c.session.SetResponseFormat(f, includeMetadata)
	return nil
}

// On registers a listener for the event.
func (c *Client) On(event events.Event, fn events.Listener) events.Subscription {
	return c.emitter.On(event, fn)
}

// Once registers a listener removed after its first invocation.
func (c *Client) Once(event events.Event, fn events.Listener) events.Subscription {
	return c.emitter.Once(event, fn)
}

// Off removes a listener registration.
func (c *Client) Off(event events.Event, sub events.Subscription) {
	c.emitter.Off(event, sub)
}

// Address returns the wallet address derived from the signing secret.
func (c *Client) Address() string {
	return c.oracle.Address().Hex()
}
