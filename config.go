package teneo

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teneolabs/teneo-go/pkg/backoff"
	"github.com/teneolabs/teneo-go/pkg/config"
	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/secret"
	"github.com/teneolabs/teneo-go/pkg/transport"
)

// Config is the single configuration record a Client is built from. All
// fields can come from the environment; functional options override them.
type Config struct {
	// URL is the coordinator websocket endpoint. Required.
	URL string `env:"TENEO_WS_URL"`

	// SecretHex is the signing key as a hex string, with or without a 0x
	// prefix. WithSecretBytes and WithSecret are the non-environment
	// alternatives.
	SecretHex string `env:"TENEO_SECRET_HEX"`

	// ExpectedAddress, when set, must match the address derived from the
	// secret; construction fails otherwise.
	ExpectedAddress string `env:"TENEO_EXPECTED_ADDRESS"`

	// ClientType is forwarded opaquely in the auth frame.
	ClientType string `env:"TENEO_CLIENT_TYPE" envDefault:"user"`

	ConnectionTimeoutMS int `env:"TENEO_CONNECTION_TIMEOUT_MS" envDefault:"30000"`
	MessageTimeoutMS    int `env:"TENEO_MESSAGE_TIMEOUT_MS" envDefault:"30000"`

	// LogLevel is a level tag only (debug, info, warn, error); the sink
	// is supplied through WithLogger.
	LogLevel string `env:"TENEO_LOG_LEVEL" envDefault:"info"`

	Reconnect ReconnectConfig `envPrefix:"TENEO_RECONNECT_"`
	Response  ResponseConfig  `envPrefix:"TENEO_RESPONSE_"`
	Dedup     DedupConfig     `envPrefix:"TENEO_DEDUP_"`
	RateLimit RateLimitConfig `envPrefix:"TENEO_RATELIMIT_"`
	Verify    VerifyConfig    `envPrefix:"TENEO_VERIFY_"`
	Webhook   WebhookConfig   `envPrefix:"TENEO_WEBHOOK_"`
}

// LoadConfig reads a Config from the process environment (the TENEO_*
// variables above), honoring a .env file in the working directory when
// one is present.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, validationError("load config: %v", err)
	}
	return cfg, nil
}

// NewClientFromEnv builds a Client from LoadConfig. Options still
// override the loaded values.
func NewClientFromEnv(opts ...Option) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, opts...)
}

// ReconnectConfig controls automatic reconnection after unexpected
// socket loss.
type ReconnectConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"true"`
	Strategy    string  `env:"STRATEGY" envDefault:"exponential"` // exponential, linear, constant
	BaseDelayMS int     `env:"BASE_DELAY_MS" envDefault:"3000"`
	MaxDelayMS  int     `env:"MAX_DELAY_MS" envDefault:"120000"`
	MaxAttempts int     `env:"MAX_ATTEMPTS" envDefault:"15"`
	JitterMS    int     `env:"JITTER_MS" envDefault:"1000"`
	Multiplier  float64 `env:"MULTIPLIER" envDefault:"2.5"`
}

// ResponseConfig selects the initial agent-response shape.
type ResponseConfig struct {
	Format          string `env:"FORMAT" envDefault:"both"` // raw, humanized, both
	IncludeMetadata bool   `env:"INCLUDE_METADATA" envDefault:"true"`
}

// DedupConfig tunes the inbound duplicate suppressor.
type DedupConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
	TTLMS   int  `env:"TTL_MS" envDefault:"60000"`
	MaxSize int  `env:"MAX_SIZE" envDefault:"10000"`
}

// RateLimitConfig tunes the outbound token bucket.
type RateLimitConfig struct {
	Enabled bool    `env:"ENABLED" envDefault:"true"`
	Rate    float64 `env:"RATE" envDefault:"10"`
	Burst   int     `env:"BURST" envDefault:"20"`
}

// VerifyConfig controls inbound message signature verification.
type VerifyConfig struct {
	Enabled          bool     `env:"ENABLED" envDefault:"false"`
	TrustedAddresses []string `env:"TRUSTED_ADDRESSES"`
	RequireFor       []string `env:"REQUIRE_FOR"`
	StrictMode       bool     `env:"STRICT_MODE" envDefault:"false"`
}

// requireFor converts the env-friendly type names into protocol message
// types for the transport layer.
func (c VerifyConfig) requireFor() []protocol.MessageType {
	if len(c.RequireFor) == 0 {
		return nil
	}
	types := make([]protocol.MessageType, 0, len(c.RequireFor))
	for _, t := range c.RequireFor {
		types = append(types, protocol.MessageType(t))
	}
	return types
}

// WebhookConfig tunes webhook delivery. The target URL and headers are
// set at runtime through ConfigureWebhook.
type WebhookConfig struct {
	QueueCapacity int    `env:"QUEUE_CAPACITY" envDefault:"1000"`
	MaxAttempts   int    `env:"MAX_ATTEMPTS" envDefault:"5"`
	Strategy      string `env:"STRATEGY" envDefault:"exponential"`
	BaseDelayMS   int    `env:"BASE_DELAY_MS" envDefault:"1000"`
	MaxDelayMS    int    `env:"MAX_DELAY_MS" envDefault:"30000"`

	// AllowInsecure lifts the loopback restriction on webhook targets.
	// Development only.
	AllowInsecure bool `env:"ALLOW_INSECURE" envDefault:"false"`
}

// Tuning overrides protocol timing internals. Zero values keep the wire
// defaults; production deployments should not need this.
type Tuning struct {
	AuthTimeout       time.Duration
	HeartbeatInterval time.Duration
	CachedAuthWait    time.Duration
	AuthPollInterval  time.Duration
}

// Option overrides configuration at construction time.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	secret        *secret.Secret
	secretBytes   []byte
	dialer        *websocket.Dialer
	tuning        Tuning
	retryStrategy backoff.Strategy
}

// WithLogger supplies the log sink. Without it a JSON slog logger at the
// configured level is built.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithSecret supplies an already sealed signing secret. The Client takes
// ownership and destroys it on Destroy.
func WithSecret(sec *secret.Secret) Option {
	return func(o *options) { o.secret = sec }
}

// WithSecretBytes supplies the raw 32-byte signing key. The slice is
// zeroed once the secret is sealed.
func WithSecretBytes(key []byte) Option {
	return func(o *options) { o.secretBytes = key }
}

// WithDialer overrides the websocket dialer, for proxies and tests.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithTuning overrides protocol timing internals.
func WithTuning(t Tuning) Option {
	return func(o *options) { o.tuning = t }
}

// WithWebhookRetryStrategy overrides the webhook retry backoff built
// from Config.Webhook.
func WithWebhookRetryStrategy(s backoff.Strategy) Option {
	return func(o *options) { o.retryStrategy = s }
}

// reconnectStrategy builds the backoff strategy the reconnect loop uses.
func (c ReconnectConfig) reconnectStrategy() backoff.Strategy {
	base := time.Duration(c.BaseDelayMS) * time.Millisecond
	max := time.Duration(c.MaxDelayMS) * time.Millisecond
	jitter := time.Duration(c.JitterMS) * time.Millisecond

	switch c.Strategy {
	case "linear":
		return backoff.Linear{Step: base, Max: max, Jitter: jitter}
	case "constant":
		return backoff.Constant{Interval: base, Jitter: jitter}
	default:
		return backoff.Exponential{Base: base, Max: max, Multiplier: c.Multiplier, Jitter: jitter}
	}
}

// retryStrategy builds the webhook retry backoff.
func (c WebhookConfig) retryStrategy() backoff.Strategy {
	base := time.Duration(c.BaseDelayMS) * time.Millisecond
	max := time.Duration(c.MaxDelayMS) * time.Millisecond

	switch c.Strategy {
	case "linear":
		return backoff.Linear{Step: base, Max: max}
	case "constant":
		return backoff.Constant{Interval: base}
	default:
		return backoff.Exponential{Base: base, Max: max, Multiplier: 2}
	}
}

func parseFormat(s string) (transport.ResponseFormat, bool) {
	switch transport.ResponseFormat(s) {
	case transport.FormatRaw, transport.FormatHumanized, transport.FormatBoth:
		return transport.ResponseFormat(s), true
	case "":
		return transport.FormatBoth, true
	default:
		return "", false
	}
}
