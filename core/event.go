package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes entries of the session event feed.
type EventType string

const (
	EventSessionStarted     EventType = "session.started"
	EventAgentState         EventType = "agent.state"
	EventResultReady        EventType = "result.ready"
	EventDecisionProceed    EventType = "decision.proceed"
	EventDecisionRegenerate EventType = "decision.regenerate"
	EventSessionEnded       EventType = "session.ended"
)

// Event is one immutable entry of the state feed. AgentID and AgentState are
// only meaningful for EventAgentState; SessionState always carries the
// session state at emission time.
type Event struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	Type         EventType    `json:"type"`
	AgentID      string       `json:"agent_id,omitempty"`
	AgentState   AgentState   `json:"agent_state"`
	SessionState SessionState `json:"session_state"`
	Error        string       `json:"error,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// NewEvent creates an event for the session with a fresh id and UTC timestamp.
func NewEvent(sessionID string, typ EventType, state SessionState) Event {
	return Event{
		ID:           NewID(),
		SessionID:    sessionID,
		Type:         typ,
		SessionState: state,
		Timestamp:    time.Now().UTC(),
	}
}

// NewAgentEvent creates an EventAgentState entry.
func NewAgentEvent(sessionID, agentID string, agentState AgentState, err error) Event {
	e := NewEvent(sessionID, EventAgentState, SessionRunning)
	e.AgentID = agentID
	e.AgentState = agentState
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewID generates a new unique identifier for sessions and events.
func NewID() string { return uuid.NewString() }
