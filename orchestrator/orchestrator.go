package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/logging"
	"github.com/hupe1980/pharmaintel/registry"
)

// Observer receives a copy of an agent's status after every transition. It is
// invoked synchronously on the run goroutine and must not block for long.
type Observer func(status core.AgentStatus)

// Options configures an Orchestrator.
type Options struct {
	// AgentTimeout bounds every agent call. Zero disables the timeout.
	AgentTimeout time.Duration
	// Logger receives lifecycle logs (defaults to NoOp).
	Logger logging.Logger
	// Clock supplies timestamps (defaults to time.Now).
	Clock func() time.Time
}

// Orchestrator dispatches registry agents sequentially for one query at a time.
// Public methods are safe for concurrent use.
type Orchestrator struct {
	registry     *registry.Registry
	synthesizer  core.Synthesizer
	agentTimeout time.Duration
	logger       logging.Logger
	now          func() time.Time

	mu      sync.Mutex
	running bool
	states  []core.AgentStatus
}

// New constructs an Orchestrator over reg using synth for aggregation.
func New(reg *registry.Registry, synth core.Synthesizer, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		AgentTimeout: 2 * time.Minute,
		Logger:       logging.NoOpLogger{},
		Clock:        time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Orchestrator{
		registry:     reg,
		synthesizer:  synth,
		agentTimeout: opts.AgentTimeout,
		logger:       logging.OrNoOp(opts.Logger),
		now:          opts.Clock,
	}
}

// RunOption customizes a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	sessionID string
	observer  Observer
}

// WithSessionID tags agent requests and logs with a session id.
func WithSessionID(id string) RunOption {
	return func(c *runConfig) { c.sessionID = id }
}

// WithObserver registers a per-run state observer.
func WithObserver(fn Observer) RunOption {
	return func(c *runConfig) { c.observer = fn }
}

// Registry returns the registry the orchestrator dispatches.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// States returns a snapshot of the agent statuses of the current or most
// recent run, ordered by execution order.
func (o *Orchestrator) States() []core.AgentStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.AgentStatus, len(o.states))
	for i, s := range o.states {
		out[i] = cloneStatus(s)
	}
	return out
}

// Run executes every registered agent for query and returns the synthesized
// result. See the package documentation for the full contract.
func (o *Orchestrator) Run(ctx context.Context, query string, runOpts ...RunOption) (*core.SynthesizedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", core.ErrInvalidInput)
	}

	cfg := runConfig{}
	for _, fn := range runOpts {
		fn(&cfg)
	}

	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	logger := o.logger
	if pl, ok := logger.(*logging.PipelineLogger); ok && cfg.sessionID != "" {
		logger = pl.WithComponent("orchestrator").WithSession(cfg.sessionID)
	}

	start := o.now()
	req := core.Request{SessionID: cfg.sessionID, Query: query}
	entries := o.registry.Entries()
	evidence := make([]core.AgentEvidence, 0, len(entries))

	result, err := func() (*core.SynthesizedResult, error) {
		for i, e := range entries {
			if err := ctx.Err(); err != nil {
				logger.Info("run cancelled before dispatch", "agent_id", e.Identity.ID)
				return nil, fmt.Errorf("%w: %w", core.ErrCancelled, err)
			}

			o.transition(i, core.AgentActive, nil, cfg.observer)
			logger.Debug("agent dispatched", "agent_id", e.Identity.ID, "order", e.Identity.ExecutionOrder)

			callStart := o.now()
			contrib, err := o.dispatch(ctx, e, req)
			if err == nil {
				err = validateContribution(contrib)
			}
			logAgentCall(logger, e.Identity.ID, o.now().Sub(callStart), err)

			if err != nil {
				o.transition(i, core.AgentFailed, err, cfg.observer)
				return nil, &core.PipelineFailedError{AgentID: e.Identity.ID, Err: err}
			}

			o.transition(i, core.AgentComplete, nil, cfg.observer)
			evidence = append(evidence, core.AgentEvidence{AgentID: e.Identity.ID, Contribution: contrib})
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrCancelled, err)
		}

		return o.synthesize(ctx, logger, req, evidence)
	}()

	if pl, ok := logger.(interface {
		LogPipelineRun(int, time.Duration, error)
	}); ok {
		pl.LogPipelineRun(len(evidence), o.now().Sub(start), err)
	}

	return result, err
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return core.ErrSessionInProgress
	}
	o.running = true

	ids := o.registry.ListAgents()
	o.states = make([]core.AgentStatus, len(ids))
	for i, id := range ids {
		o.states[i] = core.AgentStatus{ID: id.ID, Name: id.DisplayName, Order: id.ExecutionOrder, State: core.AgentIdle}
	}
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

// transition moves agent i to state and notifies the observer outside the lock.
func (o *Orchestrator) transition(i int, state core.AgentState, cause error, observer Observer) {
	now := o.now()

	o.mu.Lock()
	s := &o.states[i]
	s.State = state
	switch state {
	case core.AgentActive:
		s.StartedAt = &now
	case core.AgentComplete, core.AgentFailed:
		s.FinishedAt = &now
	}
	if cause != nil {
		s.Error = cause.Error()
	}
	snapshot := cloneStatus(*s)
	o.mu.Unlock()

	o.logger.Debug("agent state changed", "agent_id", snapshot.ID, "state", state.String())
	if observer != nil {
		observer(snapshot)
	}
}

// dispatch invokes one agent. The call context is detached from the caller's
// cancellation and bounded by the agent timeout.
func (o *Orchestrator) dispatch(ctx context.Context, e registry.Entry, req core.Request) (core.Contribution, error) {
	callCtx := context.WithoutCancel(ctx)
	cancel := func() {}
	if o.agentTimeout > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, o.agentTimeout)
	}
	defer cancel()

	type outcome struct {
		contrib core.Contribution
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		c, err := e.Agent.Run(callCtx, req)
		done <- outcome{contrib: c, err: err}
	}()

	timeoutErr := &core.TimeoutError{AgentID: e.Identity.ID, After: o.agentTimeout}

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && callCtx.Err() != nil {
			return core.Contribution{}, timeoutErr
		}
		return res.contrib, res.err
	case <-callCtx.Done():
		return core.Contribution{}, timeoutErr
	}
}

func (o *Orchestrator) synthesize(ctx context.Context, logger logging.Logger, req core.Request, evidence []core.AgentEvidence) (*core.SynthesizedResult, error) {
	ev := core.Evidence{
		SessionID:     req.SessionID,
		Query:         req.Query,
		Rationale:     MergeRationale(evidence),
		Contributions: evidence,
	}

	syn, err := o.synthesizer.Synthesize(ctx, ev)
	if err != nil && ctx.Err() != nil {
		logger.Info("run cancelled during synthesis")
		return nil, fmt.Errorf("%w: %w", core.ErrCancelled, ctx.Err())
	}
	if err != nil {
		return nil, &core.PipelineFailedError{Err: fmt.Errorf("%w: %w", core.ErrSynthesisFailed, err)}
	}
	if strings.TrimSpace(syn.Hypothesis) == "" {
		return nil, &core.PipelineFailedError{Err: fmt.Errorf("%w: empty hypothesis", core.ErrSynthesisFailed)}
	}

	confidence := core.ClampConfidence(syn.Confidence)
	if confidence != syn.Confidence {
		logger.Warn("synthesizer confidence out of range, clamped", "raw", syn.Confidence, "clamped", confidence)
	}

	return &core.SynthesizedResult{
		Hypothesis: syn.Hypothesis,
		Reasoning:  syn.Reasoning,
		Rationale:  ev.Rationale,
		Confidence: confidence,
	}, nil
}

// MergeRationale folds contributions into the fixed category set. Every
// category is present; multiple contributions to one category are joined in
// the given order separated by a blank line.
func MergeRationale(evidence []core.AgentEvidence) core.Rationale {
	parts := make(map[core.Category][]string, len(core.Categories()))
	for _, e := range evidence {
		text := strings.TrimSpace(e.Contribution.Text)
		parts[e.Contribution.Category] = append(parts[e.Contribution.Category], text)
	}

	out := make(core.Rationale, len(core.Categories()))
	for _, c := range core.Categories() {
		out[c] = strings.Join(parts[c], "\n\n")
	}
	return out
}

func validateContribution(c core.Contribution) error {
	if !c.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", core.ErrInvalidContribution, c.Category)
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: empty text for category %q", core.ErrInvalidContribution, c.Category)
	}
	return nil
}

func logAgentCall(l logging.Logger, agentID string, dur time.Duration, err error) {
	if al, ok := l.(interface {
		LogAgentCall(string, time.Duration, error)
	}); ok {
		al.LogAgentCall(agentID, dur, err)
		return
	}
	if err != nil {
		l.Error("agent failed", "agent_id", agentID, "duration", dur, "error", err)
		return
	}
	l.Info("agent completed", "agent_id", agentID, "duration", dur)
}

func cloneStatus(s core.AgentStatus) core.AgentStatus {
	c := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
