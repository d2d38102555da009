package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidInput is returned for empty or malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionInProgress is returned when a run is already in flight.
	ErrSessionInProgress = errors.New("session in progress")
	// ErrPipelineFailed matches every *PipelineFailedError.
	ErrPipelineFailed = errors.New("pipeline failed")
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("agent timed out")
	// ErrInvalidContribution is returned when an agent names an unknown
	// category or returns empty text.
	ErrInvalidContribution = errors.New("invalid contribution")
	// ErrSynthesisFailed is returned when the synthesis collaborator errors
	// or produces an empty hypothesis.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrNoPendingApproval is returned when there is nothing to decide.
	ErrNoPendingApproval = errors.New("no pending approval")
	// ErrAlreadyDecided is returned for a second decision on the same session.
	ErrAlreadyDecided = errors.New("already decided")
	// ErrCancelled is returned when a run honored cooperative cancellation.
	ErrCancelled = errors.New("session cancelled")
	// ErrNotFound is returned by session stores for unknown ids.
	ErrNotFound = errors.New("session not found")
)

// ConfigurationError reports an invalid registry setup. It is fatal at startup.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Reason }

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// PipelineFailedError identifies the agent whose failure aborted a run.
// AgentID is empty when synthesis, not an agent, failed.
type PipelineFailedError struct {
	AgentID string
	Err     error
}

func (e *PipelineFailedError) Error() string {
	if e.AgentID == "" {
		return fmt.Sprintf("pipeline failed: %v", e.Err)
	}
	return fmt.Sprintf("pipeline failed at agent %q: %v", e.AgentID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PipelineFailedError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPipelineFailed) match.
func (e *PipelineFailedError) Is(target error) bool { return target == ErrPipelineFailed }

// TimeoutError reports an agent that exceeded its per-agent timeout.
type TimeoutError struct {
	AgentID string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %q timed out after %s", e.AgentID, e.After)
}

// Is lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
