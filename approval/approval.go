// Package approval implements the human decision checkpoint that sits between
// a synthesized recommendation and any downstream action.
//
// Each session gets one ticket holding a Pending decision. The first Decide
// call moves it to Approved or Rejected; every later call loses with
// core.ErrAlreadyDecided. Approval signals "proceed" to the planning
// collaborator, rejection signals "regenerate" to the synthesis collaborator.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/logging"
)

// Options configures a Gate.
type Options struct {
	// Proceeder receives the proceed signal on approval (optional).
	Proceeder core.Proceeder
	// Regenerator receives the regenerate signal on rejection (optional).
	Regenerator core.Regenerator
	// Logger receives decision logs (defaults to NoOp).
	Logger logging.Logger
	// Clock supplies timestamps (defaults to time.Now).
	Clock func() time.Time
}

type ticket struct {
	outcome   core.Outcome
	openedAt  time.Time
	decidedAt time.Time
}

// Gate records exactly one decision per session. Safe for concurrent use.
type Gate struct {
	proceeder   core.Proceeder
	regenerator core.Regenerator
	logger      logging.Logger
	now         func() time.Time

	mu      sync.Mutex
	tickets map[string]*ticket
}

// New constructs a Gate with optional collaborators.
func New(optFns ...func(o *Options)) *Gate {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Gate{
		proceeder:   opts.Proceeder,
		regenerator: opts.Regenerator,
		logger:      logging.OrNoOp(opts.Logger),
		now:         opts.Clock,
		tickets:     make(map[string]*ticket),
	}
}

// Open registers a Pending decision for the session's result. A session can
// be opened only once.
func (g *Gate) Open(sessionID, query string, result core.SynthesizedResult) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id must not be empty", core.ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tickets[sessionID]; exists {
		return fmt.Errorf("%w: approval already opened for session %s", core.ErrInvalidInput, sessionID)
	}

	g.tickets[sessionID] = &ticket{
		outcome: core.Outcome{
			SessionID: sessionID,
			Query:     query,
			Result:    *result.Clone(),
			Decision:  core.DecisionPending,
		},
		openedAt: g.now(),
	}
	g.logger.Debug("approval opened", "session_id", sessionID)
	return nil
}

// Decide records the decision for the session and fires the matching signal.
//
// Errors:
//   - core.ErrInvalidInput if decision is not Approved or Rejected
//   - core.ErrNoPendingApproval if the session has no open ticket
//   - core.ErrAlreadyDecided if a decision was already recorded
//
// If the signal collaborator fails, the decision stays recorded and the
// collaborator's error is returned wrapped.
func (g *Gate) Decide(ctx context.Context, sessionID string, decision core.Decision) error {
	o, err := g.Record(sessionID, decision)
	if err != nil {
		return err
	}
	return g.Signal(ctx, o)
}

// Record writes the decision without firing a signal and returns the decided
// outcome for a later Signal. It fails like Decide.
func (g *Gate) Record(sessionID string, decision core.Decision) (core.Outcome, error) {
	if !decision.IsFinal() {
		return core.Outcome{}, fmt.Errorf("%w: decision must be approved or rejected, got %s", core.ErrInvalidInput, decision)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tickets[sessionID]
	if !ok {
		return core.Outcome{}, fmt.Errorf("%w: session %s", core.ErrNoPendingApproval, sessionID)
	}
	if t.outcome.Decision.IsFinal() {
		return core.Outcome{}, fmt.Errorf("%w: session %s is %s", core.ErrAlreadyDecided, sessionID, t.outcome.Decision)
	}
	t.outcome.Decision = decision
	t.decidedAt = g.now()

	g.logger.Info("approval decided", "session_id", sessionID, "decision", decision.String())

	outcome := t.outcome
	outcome.Result = *t.outcome.Result.Clone()
	return outcome, nil
}

// Signal sends proceed for an approved outcome and regenerate for a rejected
// one. Missing collaborators are skipped.
func (g *Gate) Signal(ctx context.Context, o core.Outcome) error {
	return g.signal(ctx, o)
}

func (g *Gate) signal(ctx context.Context, o core.Outcome) error {
	switch o.Decision {
	case core.DecisionApproved:
		if g.proceeder == nil {
			return nil
		}
		if err := g.proceeder.Proceed(ctx, o); err != nil {
			g.logger.Error("proceed signal failed", "session_id", o.SessionID, "error", err)
			return fmt.Errorf("signal proceed: %w", err)
		}
	case core.DecisionRejected:
		if g.regenerator == nil {
			return nil
		}
		if err := g.regenerator.Regenerate(ctx, o); err != nil {
			g.logger.Error("regenerate signal failed", "session_id", o.SessionID, "error", err)
			return fmt.Errorf("signal regenerate: %w", err)
		}
	}
	return nil
}

// Decision returns the current decision for the session.
func (g *Gate) Decision(sessionID string) (core.Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tickets[sessionID]
	if !ok {
		return core.DecisionPending, false
	}
	return t.outcome.Decision, true
}

// Pending reports whether the session has an open, undecided ticket.
func (g *Gate) Pending(sessionID string) bool {
	d, ok := g.Decision(sessionID)
	return ok && d == core.DecisionPending
}

// Forget drops the session's ticket. Later Decide calls fail with
// core.ErrNoPendingApproval.
func (g *Gate) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tickets, sessionID)
}
