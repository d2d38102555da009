package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/pharmaintel/core"
)

// StubSynthesizer returns a fixed Synthesis (or Err) and records evidence.
type StubSynthesizer struct {
	Synthesis core.Synthesis
	Err       error

	mu       sync.Mutex
	evidence []core.Evidence
}

// NewStubSynthesizer returns a stub producing hypothesis with confidence.
func NewStubSynthesizer(hypothesis string, confidence int) *StubSynthesizer {
	return &StubSynthesizer{Synthesis: core.Synthesis{Hypothesis: hypothesis, Confidence: confidence}}
}

// Synthesize implements core.Synthesizer.
func (s *StubSynthesizer) Synthesize(_ context.Context, ev core.Evidence) (core.Synthesis, error) {
	s.mu.Lock()
	s.evidence = append(s.evidence, ev)
	s.mu.Unlock()
	if s.Err != nil {
		return core.Synthesis{}, s.Err
	}
	return s.Synthesis, nil
}

// Evidence returns the evidence seen so far.
func (s *StubSynthesizer) Evidence() []core.Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Evidence, len(s.evidence))
	copy(out, s.evidence)
	return out
}

// RecordingSink implements core.Proceeder and core.Regenerator.
type RecordingSink struct {
	mu          sync.Mutex
	Proceeded   []core.Outcome
	Regenerated []core.Outcome
	Err         error
}

// Proceed implements core.Proceeder.
func (s *RecordingSink) Proceed(_ context.Context, o core.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Proceeded = append(s.Proceeded, o)
	return s.Err
}

// Regenerate implements core.Regenerator.
func (s *RecordingSink) Regenerate(_ context.Context, o core.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Regenerated = append(s.Regenerated, o)
	return s.Err
}

// Counts returns how many proceed and regenerate signals were received.
func (s *RecordingSink) Counts() (proceed, regenerate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Proceeded), len(s.Regenerated)
}

// BlockingSynthesizer blocks until its context ends and returns ctx.Err().
// Started receives once per invocation.
type BlockingSynthesizer struct {
	Started chan struct{}
}

// NewBlockingSynthesizer creates a BlockingSynthesizer with a fresh channel.
func NewBlockingSynthesizer() *BlockingSynthesizer {
	return &BlockingSynthesizer{Started: make(chan struct{}, 8)}
}

// Synthesize implements core.Synthesizer.
func (s *BlockingSynthesizer) Synthesize(ctx context.Context, _ core.Evidence) (core.Synthesis, error) {
	s.Started <- struct{}{}
	<-ctx.Done()
	return core.Synthesis{}, ctx.Err()
}

// BlockingSink implements core.Proceeder and core.Regenerator. Each signal
// announces itself on Started and then waits for Release.
type BlockingSink struct {
	RecordingSink
	Started chan struct{}
	Release chan struct{}
}

// NewBlockingSink creates a BlockingSink with fresh channels.
func NewBlockingSink() *BlockingSink {
	return &BlockingSink{Started: make(chan struct{}, 8), Release: make(chan struct{})}
}

// Proceed implements core.Proceeder.
func (s *BlockingSink) Proceed(ctx context.Context, o core.Outcome) error {
	s.Started <- struct{}{}
	<-s.Release
	return s.RecordingSink.Proceed(ctx, o)
}

// Regenerate implements core.Regenerator.
func (s *BlockingSink) Regenerate(ctx context.Context, o core.Outcome) error {
	s.Started <- struct{}{}
	<-s.Release
	return s.RecordingSink.Regenerate(ctx, o)
}
