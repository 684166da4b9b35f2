package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teneolabs/teneo-go/pkg/backoff"
	"github.com/teneolabs/teneo-go/pkg/events"
	"github.com/teneolabs/teneo-go/pkg/queue"
)

// Payload is the JSON body POSTed for every mirrored event.
type Payload struct {
	Event     string         `json:"event"`
	Data      any            `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Delivery is a queued webhook delivery with its retry bookkeeping.
type Delivery struct {
	ID            string
	Payload       Payload
	Body          []byte // marshaled once, on first attempt
	EnqueuedAt    time.Time
	Attempts      int
	NextAttemptAt time.Time
}

// RetryEvent is the payload of webhook:retry events.
type RetryEvent struct {
	DeliveryID string        `json:"delivery_id"`
	Event      string        `json:"event"`
	Attempt    int           `json:"attempt"`
	Delay      time.Duration `json:"delay"`
	Error      string        `json:"error"`
}

// ErrorEvent is the payload of webhook:error events.
type ErrorEvent struct {
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error"`
}

// SentEvent is the payload of webhook:sent and webhook:success events.
type SentEvent struct {
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Attempt    int    `json:"attempt"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Status is a point-in-time view of the dispatcher for health reporting.
type Status struct {
	Configured   bool   `json:"configured"`
	URL          string `json:"url,omitempty"`
	Disabled     bool   `json:"disabled"`
	CircuitState string `json:"circuit_state"`
	QueueDepth   int    `json:"queue_depth"`
	Dropped      uint64 `json:"dropped"`
	Sent         uint64 `json:"sent"`
	Succeeded    uint64 `json:"succeeded"`
	Failed       uint64 `json:"failed"`
}

// Config holds dispatcher tuning. Zero values fall back to the defaults:
// queue capacity 1000, 5 attempts, exponential retry 1s..30s, breaker
// 5/2/60s.
type Config struct {
	QueueCapacity int
	MaxAttempts   int
	Strategy      backoff.Strategy
	Breaker       *CircuitBreaker
	AllowInsecure bool // lifts only the loopback restriction
}

// Emit publishes a dispatcher event to the session's event surface.
type Emit func(event events.Event, payload any)

// Dispatcher mirrors selected session events to a configured HTTP
// endpoint through a bounded queue, a circuit breaker, and per-delivery
// retry with backoff. A single worker consumes the queue; enqueueing is
// non-blocking and never suspends the caller. Webhook failures never
// affect the session.
type Dispatcher struct {
	sender        *Sender
	queue         *queue.Bounded[*Delivery]
	breaker       *CircuitBreaker
	strategy      backoff.Strategy
	maxAttempts   int
	allowInsecure bool
	emit          Emit
	logger        *slog.Logger
	validateOpts  []ValidateOption

	mu       sync.Mutex
	url      string
	headers  map[string]string
	disabled bool
	sent     uint64
	success  uint64
	failed   uint64
	timers   map[string]*time.Timer

	notify   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSender overrides the HTTP sender, for custom clients or tests.
func WithSender(s *Sender) DispatcherOption {
	return func(d *Dispatcher) {
		if s != nil {
			d.sender = s
		}
	}
}

// WithValidateOptions adds URL validation options (e.g. a test resolver).
func WithValidateOptions(opts ...ValidateOption) DispatcherOption {
	return func(d *Dispatcher) {
		d.validateOpts = append(d.validateOpts, opts...)
	}
}

// NewDispatcher creates a dispatcher and starts its worker. The emit
// callback receives webhook:* events; a nil logger falls back to
// slog.Default.
func NewDispatcher(cfg Config, emit Emit, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Strategy == nil {
		cfg.Strategy = backoff.Default()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewCircuitBreaker(0, 0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(events.Event, any) {}
	}

	d := &Dispatcher{
		sender:        NewSender(),
		queue:         queue.NewBounded[*Delivery](cfg.QueueCapacity),
		breaker:       cfg.Breaker,
		strategy:      cfg.Strategy,
		maxAttempts:   cfg.MaxAttempts,
		allowInsecure: cfg.AllowInsecure,
		emit:          emit,
		logger:        logger,
		timers:        make(map[string]*time.Timer),
		notify:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.worker()
	return d
}

// Configure atomically replaces the delivery target. A URL that fails
// SSRF validation is a permanent error: the dispatcher is disabled until
// reconfigured with a valid target, and nothing is POSTed.
func (d *Dispatcher) Configure(rawURL string, headers map[string]string) error {
	validateOpts := d.validateOpts
	if d.allowInsecure {
		validateOpts = append(append([]ValidateOption{}, validateOpts...), AllowLoopback())
	}

	if err := ValidateURL(rawURL, validateOpts...); err != nil {
		d.mu.Lock()
		d.disabled = true
		d.url = ""
		d.mu.Unlock()
		d.logger.Error("webhook URL rejected", slog.String("url", rawURL), slog.Any("error", err))
		return err
	}

	cloned := make(map[string]string, len(headers))
	for k, v := range headers {
		cloned[k] = v
	}

	d.mu.Lock()
	d.url = rawURL
	d.headers = cloned
	d.disabled = false
	d.mu.Unlock()
	return nil
}

// Enqueue schedules a delivery for the given event. It is fire-and-forget
// and never blocks; with no valid target configured it is a no-op.
func (d *Dispatcher) Enqueue(event string, data any, metadata map[string]any) {
	d.mu.Lock()
	ready := !d.disabled && d.url != ""
	d.mu.Unlock()
	if !ready {
		return
	}

	delivery := &Delivery{
		ID: uuid.NewString(),
		Payload: Payload{
			Event:     event,
			Data:      data,
			Metadata:  metadata,
			Timestamp: time.Now().UTC(),
		},
		EnqueuedAt: time.Now(),
	}
	if d.queue.Push(delivery) {
		d.logger.Warn("webhook queue overflow, oldest delivery dropped",
			slog.String("event", event))
	}
	d.signal()
}

// Status reports dispatcher health.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Status{
		Configured:   d.url != "",
		URL:          d.url,
		Disabled:     d.disabled,
		CircuitState: d.breaker.State().String(),
		QueueDepth:   d.queue.Len(),
		Dropped:      d.queue.Dropped(),
		Sent:         d.sent,
		Succeeded:    d.success,
		Failed:       d.failed,
	}
}

// ClearQueue drops all pending deliveries and cancels scheduled retries,
// returning how many entries were removed.
func (d *Dispatcher) ClearQueue() int {
	d.mu.Lock()
	for id, timer := range d.timers {
		timer.Stop()
		delete(d.timers, id)
	}
	d.mu.Unlock()
	return d.queue.Clear()
}

// Close stops the worker and cancels scheduled retries. Close is
// idempotent and waits for the in-flight delivery, if any, to finish.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.stop)
		d.mu.Lock()
		for id, timer := range d.timers {
			timer.Stop()
			delete(d.timers, id)
		}
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) signal() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		delivery, ok := d.queue.Pop()
		if !ok {
			select {
			case <-d.stop:
				return
			case <-d.notify:
				continue
			}
		}

		select {
		case <-d.stop:
			return
		default:
		}

		d.process(delivery)
	}
}

func (d *Dispatcher) process(delivery *Delivery) {
	d.mu.Lock()
	url := d.url
	headers := d.headers
	disabled := d.disabled
	d.mu.Unlock()

	if disabled || url == "" {
		// Target was unconfigured after enqueue; drop quietly.
		return
	}

	// The target may have been replaced since this delivery was queued;
	// re-validate before every attempt.
	validateOpts := d.validateOpts
	if d.allowInsecure {
		validateOpts = append(append([]ValidateOption{}, validateOpts...), AllowLoopback())
	}
	if err := ValidateURL(url, validateOpts...); err != nil {
		d.fail(delivery, err)
		return
	}

	if !d.breaker.Allow() {
		d.fail(delivery, ErrCircuitOpen)
		return
	}

	if delivery.Body == nil {
		body, err := json.Marshal(delivery.Payload)
		if err != nil {
			d.fail(delivery, err)
			return
		}
		delivery.Body = body
	}

	delivery.Attempts++
	d.emit(events.WebhookSent, SentEvent{
		DeliveryID: delivery.ID,
		Event:      delivery.Payload.Event,
		Attempt:    delivery.Attempts,
	})
	d.countSent()

	requestHeaders := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		requestHeaders[k] = v
	}
	requestHeaders["X-Teneo-Event"] = delivery.Payload.Event
	requestHeaders["X-Teneo-Delivery"] = delivery.ID

	result, err := d.sender.Deliver(context.Background(), url, requestHeaders, delivery.Body)
	if err == nil {
		d.breaker.RecordSuccess()
		d.countSuccess()
		d.emit(events.WebhookSuccess, SentEvent{
			DeliveryID: delivery.ID,
			Event:      delivery.Payload.Event,
			Attempt:    delivery.Attempts,
			StatusCode: result.StatusCode,
		})
		return
	}

	d.breaker.RecordFailure()

	if IsPermanent(err) || delivery.Attempts >= d.maxAttempts {
		d.fail(delivery, err)
		return
	}

	delay := d.strategy.NextInterval(delivery.Attempts)
	delivery.NextAttemptAt = time.Now().Add(delay)
	d.emit(events.WebhookRetry, RetryEvent{
		DeliveryID: delivery.ID,
		Event:      delivery.Payload.Event,
		Attempt:    delivery.Attempts,
		Delay:      delay,
		Error:      err.Error(),
	})
	d.scheduleRetry(delivery, delay)
}

// scheduleRetry re-enqueues the delivery after the backoff delay. Fresh
// deliveries enqueued in the meantime are served first, so retried
// deliveries yield rather than preserve strict ordering.
func (d *Dispatcher) scheduleRetry(delivery *Delivery, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.stop:
		return
	default:
	}

	id := delivery.ID
	d.timers[id] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		_, live := d.timers[id]
		delete(d.timers, id)
		d.mu.Unlock()
		if !live {
			return
		}
		d.queue.Push(delivery)
		d.signal()
	})
}

func (d *Dispatcher) fail(delivery *Delivery, err error) {
	d.mu.Lock()
	d.failed++
	d.mu.Unlock()

	d.logger.Warn("webhook delivery failed",
		slog.String("delivery_id", delivery.ID),
		slog.String("event", delivery.Payload.Event),
		slog.Int("attempts", delivery.Attempts),
		slog.Any("error", err),
	)
	d.emit(events.WebhookError, ErrorEvent{
		DeliveryID: delivery.ID,
		Event:      delivery.Payload.Event,
		Attempts:   delivery.Attempts,
		Error:      err.Error(),
	})
}

func (d *Dispatcher) countSent() {
	d.mu.Lock()
	d.sent++
	d.mu.Unlock()
}

func (d *Dispatcher) countSuccess() {
	d.mu.Lock()
	d.success++
	d.mu.Unlock()
}
