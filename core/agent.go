package core

import "context"

// Request is the input handed to every agent.
type Request struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

// Contribution is an agent's output: narrative text for one rationale category.
type Contribution struct {
	Category Category `json:"rationaleCategory"`
	Text     string   `json:"rationaleText"`
}

// Agent defines the contract every analysis agent (patent search, clinical
// trial lookup, market data, ...) must satisfy to be dispatched by the
// orchestrator.
//
// Implementations must:
//   - Return a Contribution naming one of the fixed Categories
//   - Honor ctx for deadlines; the orchestrator enforces its own timeout regardless
//   - Handle retries internally if desired; the orchestrator never retries
type Agent interface {
	Run(ctx context.Context, req Request) (Contribution, error)
}

// AgentEvidence is one completed agent's contribution, attributed.
type AgentEvidence struct {
	AgentID      string       `json:"agent_id"`
	Contribution Contribution `json:"contribution"`
}

// Evidence is the merged output of a fully completed run handed to synthesis.
type Evidence struct {
	SessionID     string          `json:"session_id,omitempty"`
	Query         string          `json:"query"`
	Rationale     Rationale       `json:"rationale"`
	Contributions []AgentEvidence `json:"contributions"`
}

// Synthesis is what a Synthesizer produces from Evidence. Confidence may be
// out of range; the orchestrator clamps it.
type Synthesis struct {
	Hypothesis string `json:"hypothesis"`
	Reasoning  string `json:"reasoning,omitempty"`
	Confidence int    `json:"confidence"`
}

// Synthesizer turns merged evidence into a hypothesis and confidence score.
type Synthesizer interface {
	Synthesize(ctx context.Context, ev Evidence) (Synthesis, error)
}

// Outcome describes a decided session, handed to decision collaborators.
type Outcome struct {
	SessionID string            `json:"session_id"`
	Query     string            `json:"query"`
	Result    SynthesizedResult `json:"result"`
	Decision  Decision          `json:"decision"`
}

// Proceeder receives the "proceed" signal after an approval.
type Proceeder interface {
	Proceed(ctx context.Context, o Outcome) error
}

// Regenerator receives the "regenerate" signal after a rejection and should
// prepare an alternative hypothesis for the next run.
type Regenerator interface {
	Regenerate(ctx context.Context, o Outcome) error
}
