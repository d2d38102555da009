// Package core provides the foundational domain types and collaborator
// contracts of the research pipeline. It defines:
//
//   - Agent identities and per-session lifecycle states
//   - Rationale categories and the synthesized recommendation
//   - Approval decisions and session states
//   - Events and snapshots forming the read-only state feed
//   - The error taxonomy shared by every component
//
// Implementation concerns (dispatch, approval bookkeeping, persistence,
// concrete agents) live in sibling packages; core only exposes small
// interfaces so real agent and synthesis backends can be plugged in.
package core
