package core

import (
	"context"
	"time"
)

// AgentStatus is the per-agent row of a Snapshot.
type AgentStatus struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Order      int        `json:"order"`
	State      AgentState `json:"state"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Snapshot is an immutable view of one session: the document the view layer
// renders and the record the archive stores.
//
// Contract:
//   - Result is nil until every agent completed and synthesis succeeded
//   - Decision is nil until Result exists; it is pending until a human decides
//   - Clone performs deep copies so callers never share live state
type Snapshot struct {
	SessionID string             `json:"session_id"`
	Query     string             `json:"query"`
	State     SessionState       `json:"state"`
	Agents    []AgentStatus      `json:"agents"`
	Result    *SynthesizedResult `json:"result"`
	Decision  *Decision          `json:"decision"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.Agents != nil {
		c.Agents = make([]AgentStatus, len(s.Agents))
		for i, a := range s.Agents {
			c.Agents[i] = a.clone()
		}
	}
	c.Result = s.Result.Clone()
	if s.Decision != nil {
		d := *s.Decision
		c.Decision = &d
	}
	return c
}

func (a AgentStatus) clone() AgentStatus {
	c := a
	if a.StartedAt != nil {
		t := *a.StartedAt
		c.StartedAt = &t
	}
	if a.FinishedAt != nil {
		t := *a.FinishedAt
		c.FinishedAt = &t
	}
	return c
}

// Agent returns the status row for id.
func (s Snapshot) Agent(id string) (AgentStatus, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentStatus{}, false
}

// SessionStore archives finished sessions.
type SessionStore interface {
	Save(ctx context.Context, snap Snapshot) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, sessionID string) (Snapshot, error)
	// List returns the most recently updated sessions first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Snapshot, error)
}
