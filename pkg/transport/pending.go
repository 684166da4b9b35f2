package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teneolabs/teneo-go/pkg/protocol"
)

type outcome struct {
	resp *protocol.AgentResponse
	err  error
}

// Pending is a completion slot for a send that awaits a response. It is
// resolved exactly once: by a matching reply, by timeout, or by session
// teardown.
type Pending struct {
	table *PendingTable

	requestID     string
	room          string
	explicitAgent bool
	taskID        string
	done          bool
	createdAt     time.Time
	ch            chan outcome
}

// Wait blocks until the slot resolves, the timeout elapses, or ctx is
// canceled.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) (*protocol.AgentResponse, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-p.ch:
		return o.resp, o.err

	case <-ctx.Done():
		if p.table.fail(p, ctx.Err()) {
			return nil, ctx.Err()
		}
		// Lost the race against a concurrent resolution.
		o := <-p.ch
		return o.resp, o.err

	case <-timer.C:
		err := fmt.Errorf("%w: no response within %s", ErrTimeout, timeout)
		if p.table.fail(p, err) {
			return nil, err
		}
		o := <-p.ch
		return o.resp, o.err
	}
}

// PendingTable correlates inbound replies to in-flight requests, by
// client request id, by a task id bound through an intervening
// agent_selected, or — as a logged last resort — by room. Safe for
// concurrent use.
type PendingTable struct {
	logger *slog.Logger

	mu        sync.Mutex
	byRequest map[string]*Pending
	byTask    map[string]*Pending
	order     []*Pending // insertion order, for the fallback scan
}

// NewPendingTable creates an empty correlation table. A nil logger falls
// back to slog.Default.
func NewPendingTable(logger *slog.Logger) *PendingTable {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingTable{
		logger:    logger,
		byRequest: make(map[string]*Pending),
		byTask:    make(map[string]*Pending),
	}
}

// Add registers a new completion slot keyed by requestID. explicitAgent
// marks sends with an explicit agent target, which are excluded from the
// room fallback.
func (t *PendingTable) Add(requestID, room string, explicitAgent bool) *Pending {
	p := &Pending{
		table:         t,
		requestID:     requestID,
		room:          room,
		explicitAgent: explicitAgent,
		createdAt:     time.Now(),
		ch:            make(chan outcome, 1),
	}

	t.mu.Lock()
	t.byRequest[requestID] = p
	t.order = append(t.order, p)
	t.mu.Unlock()
	return p
}

// BindTask records the task id assigned to a pending request, so a later
// task_response carrying only the task id still correlates.
func (t *PendingTable) BindTask(requestID, taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.byRequest[requestID]
	if !ok || p.done {
		return false
	}
	p.taskID = taskID
	t.byTask[taskID] = p
	return true
}

// ResolveByRequestID completes the slot registered under requestID.
func (t *PendingTable) ResolveByRequestID(requestID string, resp *protocol.AgentResponse) bool {
	if requestID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completeLocked(t.byRequest[requestID], outcome{resp: resp})
}

// ResolveByTaskID completes the slot whose task id was bound earlier.
func (t *PendingTable) ResolveByTaskID(taskID string, resp *protocol.AgentResponse) bool {
	if taskID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completeLocked(t.byTask[taskID], outcome{resp: resp})
}

// ResolveFallback matches a reply to the oldest pending request on the
// same room when id correlation produced nothing. Requests with an
// explicit agent target never match; neither do replies originating from
// the client's own address. A fallback match is logged.
func (t *PendingTable) ResolveFallback(room, from, selfAddress string, resp *protocol.AgentResponse) bool {
	if from != "" && strings.EqualFold(from, selfAddress) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.order {
		if p.done || p.explicitAgent || p.room != room {
			continue
		}
		if t.completeLocked(p, outcome{resp: resp}) {
			t.logger.Warn("correlated reply by room fallback",
				slog.String("request_id", p.requestID),
				slog.String("room", room),
				slog.String("from", from),
			)
			return true
		}
	}
	return false
}

// Fail rejects the slot registered under requestID with err.
func (t *PendingTable) Fail(requestID string, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completeLocked(t.byRequest[requestID], outcome{err: err})
}

// FailAll rejects every in-flight request with err, for session teardown.
func (t *PendingTable) FailAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// completeLocked shrinks t.order; iterate a snapshot.
	pendings := append([]*Pending(nil), t.order...)
	for _, p := range pendings {
		t.completeLocked(p, outcome{err: err})
	}
}

// Len returns the number of unresolved requests.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byRequest)
}

func (t *PendingTable) fail(p *Pending, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completeLocked(p, outcome{err: err})
}

// completeLocked resolves p exactly once and detaches it from all
// indices. Callers hold t.mu.
func (t *PendingTable) completeLocked(p *Pending, o outcome) bool {
	if p == nil || p.done {
		return false
	}
	p.done = true
	delete(t.byRequest, p.requestID)
	if p.taskID != "" {
		delete(t.byTask, p.taskID)
	}
	for i, q := range t.order {
		if q == p {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	p.ch <- o
	return true
}
