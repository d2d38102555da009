// Package session houses concrete implementations of core.SessionStore, the
// archive of finished sessions. The interface itself lives in core so that
// the runner depends only on the contract.
//
// InMemoryStore suits tests and single-process use; the sqlite sub-package
// provides a durable backend. Add further backends in sub-packages without
// changing calling code - only the wiring layer decides which one to use.
package session
