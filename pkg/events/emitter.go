package events

import (
	"log/slog"
	"sync"
)

// Listener receives an event payload.
type Listener func(payload any)

// Subscription identifies a registered listener for removal.
type Subscription uint64

type registration struct {
	id   Subscription
	fn   Listener
	once bool
}

// Emitter dispatches typed events to listeners. Listeners run synchronously
// during Emit, in registration order; a panicking listener is recovered and
// logged and does not abort the emitter or the remaining listeners.
// Safe for concurrent use.
type Emitter struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[Event][]*registration
	nextID    Subscription
	closed    bool
}

// NewEmitter creates an emitter. A nil logger falls back to slog.Default.
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		logger:    logger,
		listeners: make(map[Event][]*registration),
	}
}

// On registers fn for event and returns a subscription handle for Off.
func (e *Emitter) On(event Event, fn Listener) Subscription {
	return e.register(event, fn, false)
}

// Once registers fn to run at most one time for event.
func (e *Emitter) Once(event Event, fn Listener) Subscription {
	return e.register(event, fn, true)
}

func (e *Emitter) register(event Event, fn Listener, once bool) Subscription {
	if fn == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0
	}
	e.nextID++
	reg := &registration{id: e.nextID, fn: fn, once: once}
	e.listeners[event] = append(e.listeners[event], reg)
	return reg.id
}

// Off removes the listener registered under sub for event.
func (e *Emitter) Off(event Event, sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	regs := e.listeners[event]
	for i, reg := range regs {
		if reg.id == sub {
			e.listeners[event] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit invokes every listener for event in registration order. Emit
// returns after the last listener completes.
func (e *Emitter) Emit(event Event, payload any) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	regs := e.listeners[event]
	snapshot := make([]*registration, len(regs))
	copy(snapshot, regs)

	// Drop one-shot listeners before releasing the lock so a concurrent
	// Emit cannot run them twice.
	remaining := regs[:0]
	for _, reg := range regs {
		if !reg.once {
			remaining = append(remaining, reg)
		}
	}
	if len(remaining) == 0 {
		delete(e.listeners, event)
	} else {
		e.listeners[event] = remaining
	}
	e.mu.Unlock()

	for _, reg := range snapshot {
		e.invoke(event, reg.fn, payload)
	}
}

func (e *Emitter) invoke(event Event, fn Listener, payload any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				slog.String("event", string(event)),
				slog.Any("panic", r),
			)
		}
	}()
	fn(payload)
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter) ListenerCount(event Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// Close removes all listeners; subsequent Emit and On calls are no-ops.
// Close is idempotent.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.listeners = make(map[Event][]*registration)
}
