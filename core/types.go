package core

import (
	"fmt"
	"strings"
)

// AgentIdentity is the immutable catalog entry for one agent.
type AgentIdentity struct {
	ID             string `json:"id" yaml:"id"`
	DisplayName    string `json:"name" yaml:"name"`
	ExecutionOrder int    `json:"order" yaml:"order"`
}

// AgentState is the lifecycle state of one agent within one session.
type AgentState int

const (
	AgentIdle AgentState = iota
	AgentActive
	AgentComplete
	AgentFailed
)

var agentStateNames = map[AgentState]string{
	AgentIdle:     "idle",
	AgentActive:   "active",
	AgentComplete: "complete",
	AgentFailed:   "failed",
}

// String returns the lowercase state name.
func (s AgentState) String() string {
	if n, ok := agentStateNames[s]; ok {
		return n
	}
	return "unknown"
}

// IsTerminal reports whether the agent has finished (successfully or not).
func (s AgentState) IsTerminal() bool { return s == AgentComplete || s == AgentFailed }

// MarshalText implements encoding.TextMarshaler.
func (s AgentState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AgentState) UnmarshalText(b []byte) error {
	for k, v := range agentStateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown agent state %q", string(b))
}

// Category names one rationale field of a SynthesizedResult.
type Category string

const (
	CategoryClinicalRationale Category = "clinicalRationale"
	CategoryPatentStatus      Category = "patentStatus"
	CategoryMarketOpportunity Category = "marketOpportunity"
	CategoryRegulatoryPath    Category = "regulatoryPath"
)

// Categories returns the fixed rationale category set in display order.
func Categories() []Category {
	return []Category{
		CategoryClinicalRationale,
		CategoryPatentStatus,
		CategoryMarketOpportunity,
		CategoryRegulatoryPath,
	}
}

// Valid reports whether c belongs to the fixed category set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Rationale maps each category to its narrative text.
type Rationale map[Category]string

// Clone returns a copy safe for independent mutation.
func (r Rationale) Clone() Rationale {
	if r == nil {
		return nil
	}
	out := make(Rationale, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SynthesizedResult is the aggregated recommendation of one session.
// Confidence is always within [0, 100].
type SynthesizedResult struct {
	Hypothesis string    `json:"hypothesis"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Rationale  Rationale `json:"rationale"`
	Confidence int       `json:"confidence"`
}

// Clone returns a deep copy of the result, or nil for a nil receiver.
func (r *SynthesizedResult) Clone() *SynthesizedResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Rationale = r.Rationale.Clone()
	return &c
}

// ClampConfidence forces v into [0, 100].
func ClampConfidence(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Decision is the human approval outcome for a synthesized result.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionApproved
	DecisionRejected
)

var decisionNames = map[Decision]string{
	DecisionPending:  "pending",
	DecisionApproved: "approved",
	DecisionRejected: "rejected",
}

// String returns the lowercase decision name.
func (d Decision) String() string {
	if n, ok := decisionNames[d]; ok {
		return n
	}
	return "unknown"
}

// IsFinal reports whether d is Approved or Rejected.
func (d Decision) IsFinal() bool { return d == DecisionApproved || d == DecisionRejected }

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(b []byte) error {
	for k, v := range decisionNames {
		if v == string(b) {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("unknown decision %q", string(b))
}

// ParseDecision accepts "approved"/"approve"/"yes" and "rejected"/"reject"/"no".
// Only final decisions can be parsed; anything else wraps ErrInvalidInput.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve", "yes", "y":
		return DecisionApproved, nil
	case "rejected", "reject", "no", "n":
		return DecisionRejected, nil
	default:
		return DecisionPending, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, s)
	}
}

// SessionState is the coarse state of a session as seen by the view layer.
type SessionState int

const (
	SessionNotStarted SessionState = iota
	SessionRunning
	SessionAwaitingApproval
	SessionApproved
	SessionRejected
	SessionFailed
	SessionCancelled
)

var sessionStateNames = map[SessionState]string{
	SessionNotStarted:       "not_started",
	SessionRunning:          "running",
	SessionAwaitingApproval: "awaiting_approval",
	SessionApproved:         "approved",
	SessionRejected:         "rejected",
	SessionFailed:           "failed",
	SessionCancelled:        "cancelled",
}

// String returns the snake_case state name.
func (s SessionState) String() string {
	if n, ok := sessionStateNames[s]; ok {
		return n
	}
	return "unknown"
}

// IsTerminal reports whether no further transition is possible.
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionApproved, SessionRejected, SessionFailed, SessionCancelled:
		return true
	default:
		return false
	}
}

// InFlight reports whether the session still blocks a new submission.
func (s SessionState) InFlight() bool {
	return s == SessionRunning || s == SessionAwaitingApproval
}

// MarshalText implements encoding.TextMarshaler.
func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SessionState) UnmarshalText(b []byte) error {
	for k, v := range sessionStateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(b))
}
