package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/pharmaintel/approval"
	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/logging"
	"github.com/hupe1980/pharmaintel/orchestrator"
	"github.com/hupe1980/pharmaintel/session"
)

// ErrNoActiveSession is returned by Cancel and Abandon when nothing is in flight.
var ErrNoActiveSession = errors.New("no active session")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets the buffer of each session's event channel.
	// Events are dropped (and logged) when a consumer falls this far behind.
	EventBufferSize int
	// SessionStore archives finished sessions.
	SessionStore core.SessionStore
	// Logger receives lifecycle logs.
	Logger logging.Logger
	// Clock supplies timestamps (defaults to time.Now).
	Clock func() time.Time
}

// SessionController coordinates one session at a time. Public methods are
// safe for concurrent use.
type SessionController struct {
	orchestrator *orchestrator.Orchestrator
	gate         *approval.Gate
	store        core.SessionStore
	logger       logging.Logger
	bufferSize   int
	now          func() time.Time

	mu      sync.RWMutex
	current *activeSession
}

type activeSession struct {
	snap    core.Snapshot
	cancel  context.CancelFunc
	events  chan core.Event
	settled chan struct{}
	done    chan struct{}
	ended   bool
}

// Handle is returned by Submit and tracks one session.
type Handle struct {
	SessionID string

	events  <-chan core.Event
	settled <-chan struct{}
	done    <-chan struct{}
}

// Events streams the session's feed; the channel closes once the session is terminal.
func (h *Handle) Events() <-chan core.Event { return h.events }

// Settled is closed when the run finished: awaiting approval or terminal.
func (h *Handle) Settled() <-chan struct{} { return h.settled }

// Done is closed when the session reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// New constructs a SessionController with optional overrides.
func New(orch *orchestrator.Orchestrator, gate *approval.Gate, optFns ...func(o *Options)) *SessionController {
	opts := Options{
		EventBufferSize: 64,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
		Clock:           time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &SessionController{
		orchestrator: orch,
		gate:         gate,
		store:        opts.SessionStore,
		logger:       logging.OrNoOp(opts.Logger),
		bufferSize:   opts.EventBufferSize,
		now:          opts.Clock,
	}
}

// Submit starts a new session for query. The orchestrator runs on its own
// goroutine; cancelling ctx cancels the run cooperatively.
func (c *SessionController) Submit(ctx context.Context, query string) (*Handle, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", core.ErrInvalidInput)
	}

	c.mu.Lock()
	if c.current != nil && c.current.snap.State.InFlight() {
		id := c.current.snap.SessionID
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", core.ErrSessionInProgress, id)
	}
	if c.current != nil {
		c.gate.Forget(c.current.snap.SessionID)
	}

	now := c.now()
	ids := c.orchestrator.Registry().ListAgents()
	agents := make([]core.AgentStatus, len(ids))
	for i, id := range ids {
		agents[i] = core.AgentStatus{ID: id.ID, Name: id.DisplayName, Order: id.ExecutionOrder, State: core.AgentIdle}
	}

	runCtx, cancel := context.WithCancel(ctx)
	sess := &activeSession{
		snap: core.Snapshot{
			SessionID: core.NewID(),
			Query:     query,
			State:     core.SessionRunning,
			Agents:    agents,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel:  cancel,
		events:  make(chan core.Event, c.bufferSize),
		settled: make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.current = sess
	c.emitLocked(sess, core.NewEvent(sess.snap.SessionID, core.EventSessionStarted, core.SessionRunning))
	c.mu.Unlock()

	sessionID := sess.snap.SessionID
	c.logger.Info("session submitted", "session_id", sessionID, "agents", len(agents))

	go func() {
		defer cancel()
		res, err := c.orchestrator.Run(runCtx, query,
			orchestrator.WithSessionID(sessionID),
			orchestrator.WithObserver(func(s core.AgentStatus) { c.onAgentState(sess, s) }),
		)
		c.finishRun(sess, res, err)
	}()

	return &Handle{SessionID: sessionID, events: sess.events, settled: sess.settled, done: sess.done}, nil
}

func (c *SessionController) onAgentState(sess *activeSession, s core.AgentStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range sess.snap.Agents {
		if sess.snap.Agents[i].ID == s.ID {
			sess.snap.Agents[i] = s
			break
		}
	}
	sess.snap.UpdatedAt = c.now()

	var cause error
	if s.Error != "" {
		cause = errors.New(s.Error)
	}
	c.emitLocked(sess, core.NewAgentEvent(sess.snap.SessionID, s.ID, s.State, cause))
}

func (c *SessionController) finishRun(sess *activeSession, res *core.SynthesizedResult, runErr error) {
	c.mu.Lock()

	if sess.ended {
		c.mu.Unlock()
		return
	}

	if runErr != nil {
		state := core.SessionFailed
		if errors.Is(runErr, core.ErrCancelled) {
			state = core.SessionCancelled
		}
		sess.snap.Error = runErr.Error()
		c.logger.Warn("session ended without result", "session_id", sess.snap.SessionID, "state", state.String(), "error", runErr)
		c.endLocked(sess, state)
		c.mu.Unlock()
		c.archive(sess)
		return
	}

	if err := c.gate.Open(sess.snap.SessionID, sess.snap.Query, *res); err != nil {
		sess.snap.Error = err.Error()
		c.endLocked(sess, core.SessionFailed)
		c.mu.Unlock()
		c.archive(sess)
		return
	}

	pending := core.DecisionPending
	sess.snap.Result = res.Clone()
	sess.snap.Decision = &pending
	sess.snap.State = core.SessionAwaitingApproval
	sess.snap.UpdatedAt = c.now()
	c.emitLocked(sess, core.NewEvent(sess.snap.SessionID, core.EventResultReady, core.SessionAwaitingApproval))
	close(sess.settled)
	c.mu.Unlock()

	c.logger.Info("session awaiting approval", "session_id", sess.snap.SessionID, "confidence", res.Confidence)
}

// Decide records the human decision for the current session. It returns
// core.ErrNoPendingApproval when no result awaits a decision and
// core.ErrAlreadyDecided for a repeated decision.
//
// The decision and the session's terminal state are committed together
// before the proceed or regenerate signal fires, so a concurrent Abandon or
// Cancel cannot overwrite it.
func (c *SessionController) Decide(ctx context.Context, decision core.Decision) error {
	c.mu.Lock()
	sess := c.current
	if sess == nil {
		c.mu.Unlock()
		return core.ErrNoPendingApproval
	}

	outcome, err := c.gate.Record(sess.snap.SessionID, decision)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	d := decision
	sess.snap.Decision = &d
	state := core.SessionApproved
	typ := core.EventDecisionProceed
	if decision == core.DecisionRejected {
		state = core.SessionRejected
		typ = core.EventDecisionRegenerate
	}
	c.emitLocked(sess, core.NewEvent(sess.snap.SessionID, typ, state))
	c.endLocked(sess, state)
	c.mu.Unlock()

	// The decision stays recorded even if the signal fails.
	if err := c.gate.Signal(ctx, outcome); err != nil {
		c.mu.Lock()
		sess.snap.Error = err.Error()
		sess.snap.UpdatedAt = c.now()
		c.mu.Unlock()
		c.archive(sess)
		return err
	}

	c.archive(sess)
	return nil
}

// Cancel requests cooperative cancellation of the running session. The
// session becomes Cancelled once the orchestrator reaches its next dispatch
// point or its synthesis call returns. Cancelling a session that awaits
// approval abandons it; a decided session returns core.ErrAlreadyDecided.
func (c *SessionController) Cancel() error {
	c.mu.Lock()
	sess := c.current
	if err := c.checkAbortableLocked(sess); err != nil {
		c.mu.Unlock()
		return err
	}
	if sess.snap.State == core.SessionAwaitingApproval {
		c.mu.Unlock()
		return c.Abandon()
	}
	sess.cancel()
	c.mu.Unlock()

	c.logger.Info("session cancellation requested", "session_id", sess.snap.SessionID)
	return nil
}

// Abandon ends a session awaiting approval without a decision. A running
// session is cancelled instead. A decided session returns
// core.ErrAlreadyDecided.
func (c *SessionController) Abandon() error {
	c.mu.Lock()
	sess := c.current
	if err := c.checkAbortableLocked(sess); err != nil {
		c.mu.Unlock()
		return err
	}
	if sess.snap.State == core.SessionRunning {
		sess.cancel()
		c.mu.Unlock()
		return nil
	}

	c.gate.Forget(sess.snap.SessionID)
	sess.snap.Error = "abandoned"
	c.endLocked(sess, core.SessionCancelled)
	c.mu.Unlock()

	c.logger.Info("session abandoned", "session_id", sess.snap.SessionID)
	c.archive(sess)
	return nil
}

// checkAbortableLocked reports why sess cannot be cancelled or abandoned.
// Caller must hold c.mu.
func (c *SessionController) checkAbortableLocked(sess *activeSession) error {
	if sess == nil {
		return ErrNoActiveSession
	}
	if sess.snap.Decision != nil && sess.snap.Decision.IsFinal() {
		return fmt.Errorf("%w: session %s is %s", core.ErrAlreadyDecided, sess.snap.SessionID, sess.snap.Decision)
	}
	if !sess.snap.State.InFlight() {
		return ErrNoActiveSession
	}
	if sess.snap.State == core.SessionAwaitingApproval && !c.gate.Pending(sess.snap.SessionID) {
		return fmt.Errorf("%w: session %s", core.ErrAlreadyDecided, sess.snap.SessionID)
	}
	return nil
}

// CurrentState returns the state of the current (or last) session.
func (c *SessionController) CurrentState() core.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return core.SessionNotStarted
	}
	return c.current.snap.State
}

// Snapshot returns an immutable copy of the current (or last) session.
func (c *SessionController) Snapshot() core.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return core.Snapshot{State: core.SessionNotStarted}
	}
	return c.current.snap.Clone()
}

// Wait blocks until the current session settles (awaiting approval or
// terminal) and returns its snapshot.
func (c *SessionController) Wait(ctx context.Context) (core.Snapshot, error) {
	c.mu.RLock()
	sess := c.current
	c.mu.RUnlock()
	if sess == nil {
		return core.Snapshot{State: core.SessionNotStarted}, ErrNoActiveSession
	}

	select {
	case <-sess.settled:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// History returns archived sessions, most recent first.
func (c *SessionController) History(ctx context.Context, limit int) ([]core.Snapshot, error) {
	return c.store.List(ctx, limit)
}

// endLocked moves sess to a terminal state and closes its channels. Caller
// must hold c.mu.
func (c *SessionController) endLocked(sess *activeSession, state core.SessionState) {
	sess.snap.State = state
	sess.snap.UpdatedAt = c.now()
	c.emitLocked(sess, core.NewEvent(sess.snap.SessionID, core.EventSessionEnded, state))

	sess.ended = true
	close(sess.events)
	select {
	case <-sess.settled:
	default:
		close(sess.settled)
	}
	close(sess.done)
}

// emitLocked delivers ev without blocking the orchestrator. Caller must hold c.mu.
func (c *SessionController) emitLocked(sess *activeSession, ev core.Event) {
	if sess.ended {
		return
	}
	select {
	case sess.events <- ev:
	default:
		c.logger.Warn("event dropped, consumer too slow", "session_id", ev.SessionID, "type", string(ev.Type))
	}
}

func (c *SessionController) archive(sess *activeSession) {
	c.mu.RLock()
	snap := sess.snap.Clone()
	c.mu.RUnlock()

	if err := c.store.Save(context.Background(), snap); err != nil {
		c.logger.Error("archive session failed", "session_id", snap.SessionID, "error", err)
	}
}
