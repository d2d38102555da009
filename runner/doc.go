// Package runner implements the SessionController: the end-to-end lifecycle
// of one query from submission through agent execution, synthesis and human
// approval to a terminal outcome.
//
// The controller bridges the view layer and the orchestration core:
//   - Submit validates the query, rejects overlapping sessions and starts the
//     orchestrator asynchronously
//   - the state feed (Snapshot, CurrentState, Handle.Events) exposes
//     immutable copies only
//   - Decide forwards the human decision to the approval gate
//   - Cancel and Abandon end a session without a decision
//
// At most one session is in flight (Running or AwaitingApproval) at a time.
// Finished sessions are archived to the configured core.SessionStore.
package runner
