package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/registry"
)

// Call is one instrumented agent invocation.
type Call struct {
	AgentID  string
	Query    string
	Seq      int // global start sequence, 1-based
	DoneSeq  int // global completion sequence, 1-based
	Started  time.Time
	Finished time.Time
}

// Recorder collects calls across agents with a shared monotonic sequence so
// tests can assert strict dispatch ordering independent of clock resolution.
type Recorder struct {
	mu    sync.Mutex
	seq   int
	calls []Call
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) start(agentID, query string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.calls = append(r.calls, Call{AgentID: agentID, Query: query, Seq: r.seq, Started: time.Now()})
	return len(r.calls) - 1
}

func (r *Recorder) finish(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.calls[idx].DoneSeq = r.seq
	r.calls[idx].Finished = time.Now()
}

// Calls returns a copy of all recorded calls in start order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// IDs returns the agent ids in start order.
func (r *Recorder) IDs() []string {
	calls := r.Calls()
	ids := make([]string, len(calls))
	for i, c := range calls {
		ids[i] = c.AgentID
	}
	return ids
}

// RecordingAgent returns a fixed contribution and records its invocation.
type RecordingAgent struct {
	ID       string
	Category core.Category
	Text     string
	Err      error
	Delay    time.Duration
	Recorder *Recorder
}

// Run implements core.Agent.
func (a *RecordingAgent) Run(ctx context.Context, req core.Request) (core.Contribution, error) {
	idx := -1
	if a.Recorder != nil {
		idx = a.Recorder.start(a.ID, req.Query)
	}
	if a.Delay > 0 {
		time.Sleep(a.Delay)
	}
	if idx >= 0 {
		a.Recorder.finish(idx)
	}
	if a.Err != nil {
		return core.Contribution{}, a.Err
	}
	text := a.Text
	if text == "" {
		text = fmt.Sprintf("%s evidence for %s", a.ID, req.Query)
	}
	return core.Contribution{Category: a.Category, Text: text}, nil
}

// BlockingAgent blocks until Release is closed (or the call context ends).
// Started receives once per invocation.
type BlockingAgent struct {
	Category core.Category
	Started  chan struct{}
	Release  chan struct{}
}

// NewBlockingAgent creates a BlockingAgent with fresh channels.
func NewBlockingAgent(c core.Category) *BlockingAgent {
	return &BlockingAgent{Category: c, Started: make(chan struct{}, 8), Release: make(chan struct{})}
}

// Run implements core.Agent.
func (a *BlockingAgent) Run(ctx context.Context, _ core.Request) (core.Contribution, error) {
	a.Started <- struct{}{}
	select {
	case <-a.Release:
		return core.Contribution{Category: a.Category, Text: "released"}, nil
	case <-ctx.Done():
		return core.Contribution{}, ctx.Err()
	}
}

// DefaultCategories maps the canonical six agent ids to categories.
var DefaultCategories = map[string]core.Category{
	"clinical": core.CategoryClinicalRationale,
	"patent":   core.CategoryPatentStatus,
	"internal": core.CategoryClinicalRationale,
	"web":      core.CategoryRegulatoryPath,
	"iqvia":    core.CategoryMarketOpportunity,
	"exim":     core.CategoryMarketOpportunity,
}

// CanonicalOrder is the dispatch sequence of the six default agents.
var CanonicalOrder = []string{"clinical", "patent", "internal", "web", "iqvia", "exim"}

// NewRecordingRegistry builds a registry of RecordingAgents in the given id
// order. Agents whose id appears in failures return that error.
func NewRecordingRegistry(rec *Recorder, ids []string, failures map[string]error) (*registry.Registry, map[string]*RecordingAgent) {
	agents := make(map[string]*RecordingAgent, len(ids))
	entries := make([]registry.Entry, len(ids))
	for i, id := range ids {
		cat, ok := DefaultCategories[id]
		if !ok {
			cat = core.Categories()[i%len(core.Categories())]
		}
		a := &RecordingAgent{ID: id, Category: cat, Err: failures[id], Recorder: rec}
		agents[id] = a
		entries[i] = registry.Entry{
			Identity: core.AgentIdentity{ID: id, DisplayName: strings.ToUpper(id), ExecutionOrder: i},
			Agent:    a,
		}
	}
	return registry.MustNew(entries...), agents
}
