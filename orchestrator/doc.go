// Package orchestrator drives one query through every agent of a registry in
// strict execution order and aggregates the results into a single
// SynthesizedResult.
//
// Execution model:
//
//  1. The query is validated (non-empty after trimming) before any state exists
//  2. One AgentStatus per registered agent is initialized to Idle
//  3. Agents are dispatched one at a time: Idle -> Active -> Complete | Failed
//  4. The first failure aborts the run with a *core.PipelineFailedError; later
//     agents are never dispatched and no partial result is produced
//  5. Once every agent is Complete, contributions are merged into the fixed
//     category set and handed to the Synthesizer; confidence is clamped to [0, 100]
//
// Cancellation is cooperative: the caller's context is checked before each
// dispatch (and before synthesis) but is not propagated into an agent call
// that has already started. A per-agent timeout bounds each call instead.
//
// An Orchestrator runs at most one query at a time; a concurrent Run fails
// with core.ErrSessionInProgress.
package orchestrator
