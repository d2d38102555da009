// Package pharmaintel provides a high-level façade over the research pipeline:
// an agent registry, the sequential orchestrator, the approval gate and the
// session controller that ties them together. Most applications interact with
// this package by:
//  1. Creating a PharmaIntel via New() (optionally overriding the default
//     catalog, synthesizer, collaborators or archive)
//  2. Submitting a research query (Submit) or running one synchronously (Run)
//  3. Recording the human decision on the recommendation (Decide)
//
// All defaults are safe for local development and demos: static agents serve
// canned evidence, a static synthesizer serves canned recommendations and
// finished sessions are archived in memory.
package pharmaintel

import (
	"context"
	"time"

	"github.com/hupe1980/pharmaintel/approval"
	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/logging"
	"github.com/hupe1980/pharmaintel/orchestrator"
	"github.com/hupe1980/pharmaintel/registry"
	"github.com/hupe1980/pharmaintel/runner"
	"github.com/hupe1980/pharmaintel/session"
	"github.com/hupe1980/pharmaintel/synthesis"
)

// Options configures the PharmaIntel instance.
type Options struct {
	// Registry is used as-is when set; Catalog and Resolver are ignored.
	Registry *registry.Registry
	// Catalog lists the agents to build (defaults to DefaultCatalog()).
	Catalog []core.AgentIdentity
	// Resolver binds catalog identities to agents (defaults to StaticResolver()).
	Resolver registry.Resolver

	// Synthesizer aggregates evidence (defaults to synthesis.NewStatic()).
	Synthesizer core.Synthesizer
	// Proceeder receives approvals (defaults to a planning hand-off that logs).
	Proceeder core.Proceeder
	// Regenerator receives rejections (defaults to the Synthesizer when it
	// implements core.Regenerator).
	Regenerator core.Regenerator

	// SessionStore archives finished sessions (defaults to in-memory).
	SessionStore core.SessionStore

	// AgentTimeout bounds every agent call. Zero disables the timeout.
	AgentTimeout time.Duration
	// EventBufferSize sets the per-session event channel buffer.
	EventBufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// PharmaIntel is the high-level façade aggregating the pipeline components.
type PharmaIntel struct {
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	gate         *approval.Gate
	controller   *runner.SessionController
}

// New creates a PharmaIntel instance with optional overrides. It fails with a
// *core.ConfigurationError when the agent catalog is invalid.
func New(optFns ...func(o *Options)) (*PharmaIntel, error) {
	opts := Options{
		AgentTimeout:    2 * time.Minute,
		EventBufferSize: 64,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	reg := opts.Registry
	if reg == nil {
		catalog := opts.Catalog
		if catalog == nil {
			catalog = DefaultCatalog()
		}
		resolve := opts.Resolver
		if resolve == nil {
			resolve = StaticResolver()
		}
		var err error
		if reg, err = registry.FromCatalog(catalog, resolve); err != nil {
			return nil, err
		}
	}

	if opts.Synthesizer == nil {
		opts.Synthesizer = synthesis.NewStatic()
	}
	if opts.Regenerator == nil {
		if r, ok := opts.Synthesizer.(core.Regenerator); ok {
			opts.Regenerator = r
		}
	}
	if opts.Proceeder == nil {
		opts.Proceeder = &planningHandoff{logger: scoped(logger, "planning")}
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	orch := orchestrator.New(reg, opts.Synthesizer, func(o *orchestrator.Options) {
		o.AgentTimeout = opts.AgentTimeout
		o.Logger = scoped(logger, "orchestrator")
	})

	gate := approval.New(func(o *approval.Options) {
		o.Proceeder = opts.Proceeder
		o.Regenerator = opts.Regenerator
		o.Logger = scoped(logger, "approval")
	})

	ctrl := runner.New(orch, gate, func(o *runner.Options) {
		o.SessionStore = opts.SessionStore
		o.EventBufferSize = opts.EventBufferSize
		o.Logger = scoped(logger, "session")
	})

	logger.Debug("pipeline assembled", "agents", reg.String())

	return &PharmaIntel{registry: reg, orchestrator: orch, gate: gate, controller: ctrl}, nil
}

// Registry returns the agent registry.
func (p *PharmaIntel) Registry() *registry.Registry { return p.registry }

// Controller exposes the underlying session controller.
func (p *PharmaIntel) Controller() *runner.SessionController { return p.controller }

// Submit starts a session asynchronously.
func (p *PharmaIntel) Submit(ctx context.Context, query string) (*runner.Handle, error) {
	return p.controller.Submit(ctx, query)
}

// Run submits query and blocks until the session awaits approval or ends.
// A failed or cancelled session is reported through the snapshot's State and
// Error, not as a returned error.
func (p *PharmaIntel) Run(ctx context.Context, query string) (core.Snapshot, error) {
	if _, err := p.controller.Submit(ctx, query); err != nil {
		return core.Snapshot{}, err
	}
	return p.controller.Wait(ctx)
}

// Decide records the human decision for the current session.
func (p *PharmaIntel) Decide(ctx context.Context, d core.Decision) error {
	return p.controller.Decide(ctx, d)
}

// Cancel cancels the current session cooperatively.
func (p *PharmaIntel) Cancel() error { return p.controller.Cancel() }

// Abandon drops a session awaiting approval without a decision.
func (p *PharmaIntel) Abandon() error { return p.controller.Abandon() }

// Snapshot returns a copy of the current session's state feed.
func (p *PharmaIntel) Snapshot() core.Snapshot { return p.controller.Snapshot() }

// History lists archived sessions, most recent first.
func (p *PharmaIntel) History(ctx context.Context, limit int) ([]core.Snapshot, error) {
	return p.controller.History(ctx, limit)
}

// planningHandoff stands in for the downstream R&D planning phase.
type planningHandoff struct {
	logger logging.Logger
}

func (h *planningHandoff) Proceed(_ context.Context, o core.Outcome) error {
	h.logger.Info("hypothesis approved, proceeding to detailed R&D planning",
		"session_id", o.SessionID, "hypothesis", o.Result.Hypothesis, "confidence", o.Result.Confidence)
	return nil
}

func scoped(l logging.Logger, component string) logging.Logger {
	if pl, ok := l.(*logging.PipelineLogger); ok {
		return pl.WithComponent(component)
	}
	return l
}
