// Package agent contains research agent implementations that satisfy
// core.Agent. Each agent is a collaborator of the orchestrator: it receives the
// session's query and returns one categorized rationale contribution.
//
// The package provides:
//
//  1. Func, an adapter turning ordinary functions into agents
//  2. Static, canned evidence for demos and offline runs
//  3. ModelAgent, a language-model-backed agent driven by an instruction
//     template
//  4. Retry, a wrapper that retries a flaky agent with backoff
//
// Agents never retry on behalf of the orchestrator; wrapping with WithRetry is
// an explicit choice made when the registry is assembled.
package agent
