// Package registry provides the fixed, validated catalog of agents a pipeline
// dispatches. A Registry is read-only after construction: identities are
// immutable values and there is no runtime mutation path.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/pharmaintel/core"
)

// Entry binds a catalog identity to the agent implementation that serves it.
type Entry struct {
	Identity core.AgentIdentity
	Agent    core.Agent
}

// Registry is an ordered, validated agent catalog. Safe for concurrent reads.
type Registry struct {
	entries []Entry
	byID    map[string]int
}

// New validates entries and returns a Registry ordered by ExecutionOrder.
//
// Validation rules (violations return a *core.ConfigurationError):
//   - at least one entry
//   - ids are non-empty and unique
//   - every entry has a non-nil Agent
//   - execution orders are unique and contiguous from 0
func New(entries ...Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, core.NewConfigurationError("registry has no agents")
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Identity.ExecutionOrder < sorted[j].Identity.ExecutionOrder
	})

	byID := make(map[string]int, len(sorted))
	for i, e := range sorted {
		id := e.Identity.ID
		if strings.TrimSpace(id) == "" {
			return nil, core.NewConfigurationError("agent at order %d has an empty id", e.Identity.ExecutionOrder)
		}
		if _, dup := byID[id]; dup {
			return nil, core.NewConfigurationError("duplicate agent id %q", id)
		}
		if e.Agent == nil {
			return nil, core.NewConfigurationError("agent %q has no implementation", id)
		}
		if i > 0 && e.Identity.ExecutionOrder == sorted[i-1].Identity.ExecutionOrder {
			return nil, core.NewConfigurationError("agents %q and %q share execution order %d",
				sorted[i-1].Identity.ID, id, e.Identity.ExecutionOrder)
		}
		if e.Identity.ExecutionOrder != i {
			return nil, core.NewConfigurationError("execution orders must be contiguous from 0: agent %q has order %d, expected %d",
				id, e.Identity.ExecutionOrder, i)
		}
		byID[id] = i
	}

	return &Registry{entries: sorted, byID: byID}, nil
}

// MustNew is like New but panics on a configuration error.
func MustNew(entries ...Entry) *Registry {
	r, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// ListAgents returns the identities ordered by ExecutionOrder ascending.
// The slice is a copy and safe for caller mutation.
func (r *Registry) ListAgents() []core.AgentIdentity {
	out := make([]core.AgentIdentity, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Identity
	}
	return out
}

// Entries returns the ordered entries (copy).
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Agent returns the implementation registered for id.
func (r *Registry) Agent(id string) (core.Agent, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.entries[i].Agent, true
}

// Identity returns the identity registered for id.
func (r *Registry) Identity(id string) (core.AgentIdentity, bool) {
	i, ok := r.byID[id]
	if !ok {
		return core.AgentIdentity{}, false
	}
	return r.entries[i].Identity, true
}

// Len returns the number of registered agents.
func (r *Registry) Len() int { return len(r.entries) }

// String renders the dispatch sequence, e.g. "clinical -> patent -> web".
func (r *Registry) String() string {
	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.Identity.ID
	}
	return fmt.Sprintf("registry[%s]", strings.Join(ids, " -> "))
}
