package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/teneolabs/teneo-go/pkg/protocol"
)

// AgentRegistry is the in-memory catalog of known agents with secondary
// indexes by capability, name token, and status. Index keys are compared
// case-insensitively; every index entry is kept exactly consistent with
// the primary map. All lookups return defensive copies. Safe for
// concurrent use.
type AgentRegistry struct {
	mu       sync.RWMutex
	agents   map[string]*protocol.Agent
	byCap    map[string]map[string]struct{} // capability name -> agent ids
	byToken  map[string]map[string]struct{} // name token -> agent ids
	byStatus map[string]map[string]struct{} // status -> agent ids
	snapshot []protocol.Agent               // cached all() result, nil when dirty
	onChange func()
}

// NewAgentRegistry creates an empty agent registry.
func NewAgentRegistry() *AgentRegistry {
	r := &AgentRegistry{}
	r.resetLocked()
	return r
}

// SetOnChange registers a callback invoked after every mutation, outside
// the registry lock. Used to surface agent:list events.
func (r *AgentRegistry) SetOnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Replace rebuilds the registry from scratch with the given list. All
// indexes are cleared and reconstructed in one pass.
func (r *AgentRegistry) Replace(agents []protocol.Agent) {
	r.mu.Lock()
	r.resetLocked()
	for i := range agents {
		if agents[i].ID == "" {
			continue
		}
		clone := cloneAgent(&agents[i])
		r.agents[clone.ID] = clone
		r.indexLocked(clone)
	}
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Upsert inserts or updates a single agent. Prior index entries for the
// agent are removed before the new ones are added, so indexes never point
// at stale rows.
func (r *AgentRegistry) Upsert(agent protocol.Agent) {
	if agent.ID == "" {
		return
	}

	r.mu.Lock()
	if prev, ok := r.agents[agent.ID]; ok {
		r.unindexLocked(prev)
	}
	clone := cloneAgent(&agent)
	r.agents[clone.ID] = clone
	r.indexLocked(clone)
	r.snapshot = nil
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Get returns a copy of the agent with the given id.
func (r *AgentRegistry) Get(id string) (protocol.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return protocol.Agent{}, false
	}
	return *cloneAgent(agent), true
}

// All returns copies of every known agent, ordered by id. The result is
// cached until the next mutation.
func (r *AgentRegistry) All() []protocol.Agent {
	r.mu.Lock()
	if r.snapshot == nil {
		r.snapshot = make([]protocol.Agent, 0, len(r.agents))
		for _, agent := range r.agents {
			r.snapshot = append(r.snapshot, *cloneAgent(agent))
		}
		sort.Slice(r.snapshot, func(i, j int) bool {
			return r.snapshot[i].ID < r.snapshot[j].ID
		})
	}
	out := make([]protocol.Agent, len(r.snapshot))
	copy(out, r.snapshot)
	r.mu.Unlock()
	return out
}

// FindByCapability returns copies of every agent advertising the named
// capability. Matching is case-insensitive.
func (r *AgentRegistry) FindByCapability(name string) []protocol.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectLocked(r.byCap[strings.ToLower(name)])
}

// FindByStatus returns copies of every agent with the given status.
func (r *AgentRegistry) FindByStatus(status string) []protocol.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectLocked(r.byStatus[strings.ToLower(status)])
}

// FindByName returns copies of every agent whose name shares at least one
// token with the query. Tokens split on non-alphanumeric characters and
// compare lowercased; matches union the posting lists per token.
func (r *AgentRegistry) FindByName(fragment string) []protocol.Agent {
	tokens := tokenize(fragment)
	if len(tokens) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	union := make(map[string]struct{})
	for _, token := range tokens {
		for id := range r.byToken[token] {
			union[id] = struct{}{}
		}
	}
	return r.collectLocked(union)
}

// Len returns the number of known agents.
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Clear removes every agent and index entry.
func (r *AgentRegistry) Clear() {
	r.mu.Lock()
	r.resetLocked()
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Must be called with lock held.
func (r *AgentRegistry) resetLocked() {
	r.agents = make(map[string]*protocol.Agent)
	r.byCap = make(map[string]map[string]struct{})
	r.byToken = make(map[string]map[string]struct{})
	r.byStatus = make(map[string]map[string]struct{})
	r.snapshot = nil
}

// Must be called with lock held.
func (r *AgentRegistry) indexLocked(agent *protocol.Agent) {
	for _, cap := range agent.Capabilities {
		addToIndex(r.byCap, strings.ToLower(cap.Name), agent.ID)
	}
	for _, token := range tokenize(agent.Name) {
		addToIndex(r.byToken, token, agent.ID)
	}
	if agent.Status != "" {
		addToIndex(r.byStatus, strings.ToLower(agent.Status), agent.ID)
	}
	r.snapshot = nil
}

// Must be called with lock held.
func (r *AgentRegistry) unindexLocked(agent *protocol.Agent) {
	for _, cap := range agent.Capabilities {
		removeFromIndex(r.byCap, strings.ToLower(cap.Name), agent.ID)
	}
	for _, token := range tokenize(agent.Name) {
		removeFromIndex(r.byToken, token, agent.ID)
	}
	if agent.Status != "" {
		removeFromIndex(r.byStatus, strings.ToLower(agent.Status), agent.ID)
	}
	r.snapshot = nil
}

// Must be called with lock held.
func (r *AgentRegistry) collectLocked(ids map[string]struct{}) []protocol.Agent {
	if len(ids) == 0 {
		return nil
	}
	out := make([]protocol.Agent, 0, len(ids))
	for id := range ids {
		if agent, ok := r.agents[id]; ok {
			out = append(out, *cloneAgent(agent))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func addToIndex(index map[string]map[string]struct{}, key, id string) {
	if key == "" {
		return
	}
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, id string) {
	if set, ok := index[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

// tokenize splits on non-alphanumeric characters and lowercases.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

// cloneAgent deep-copies the slices so mutations of returned values never
// reach registry state.
func cloneAgent(a *protocol.Agent) *protocol.Agent {
	clone := *a
	if a.Capabilities != nil {
		clone.Capabilities = make([]protocol.Capability, len(a.Capabilities))
		copy(clone.Capabilities, a.Capabilities)
	}
	if a.Commands != nil {
		clone.Commands = make([]protocol.Command, len(a.Commands))
		copy(clone.Commands, a.Commands)
	}
	return &clone
}
