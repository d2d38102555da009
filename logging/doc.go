// Package logging provides a minimal logging interface and slog-backed
// adapters for the research pipeline.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the orchestrator, approval gate and session controller use
// for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping a caller supplied *slog.Logger
//   - PipelineLogger with component/session scoping and agent call helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewPipelineLogger(&logging.Config{Level: logging.LogLevelInfo, Format: "text"})
//	ctrl := runner.New(orch, gate, func(o *runner.Options) { o.Logger = logger })
package logging
