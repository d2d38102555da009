package synthesis

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/pharmaintel/core"
)

// DefaultAlternatives is the canned recommendation set served by Static, in
// the order they are offered after successive rejections.
var DefaultAlternatives = []core.Synthesis{
	{
		Hypothesis: "Develop inhaled sildenafil formulation for pulmonary hypertension",
		Reasoning:  "Overcomes oral systemic side effects through localized pulmonary delivery",
		Confidence: 87,
	},
	{
		Hypothesis: "Develop extended-release oral sildenafil for Raynaud's phenomenon",
		Reasoning:  "Smooths plasma peaks that drive headache and flushing while covering cold-exposure windows",
		Confidence: 72,
	},
	{
		Hypothesis: "Develop topical sildenafil cream for diabetic foot ulcer healing",
		Reasoning:  "Local vasodilation improves wound perfusion without systemic hypotension risk",
		Confidence: 64,
	},
}

// Static returns canned syntheses. Each Regenerate call advances to the next
// alternative, wrapping around.
type Static struct {
	mu           sync.Mutex
	alternatives []core.Synthesis
	next         int
}

// NewStatic creates a Static synthesizer; with no alternatives it serves
// DefaultAlternatives.
func NewStatic(alternatives ...core.Synthesis) *Static {
	if len(alternatives) == 0 {
		alternatives = DefaultAlternatives
	}
	alts := make([]core.Synthesis, len(alternatives))
	copy(alts, alternatives)
	return &Static{alternatives: alts}
}

// Synthesize implements core.Synthesizer.
func (s *Static) Synthesize(ctx context.Context, ev core.Evidence) (core.Synthesis, error) {
	if err := ctx.Err(); err != nil {
		return core.Synthesis{}, err
	}
	if len(ev.Contributions) == 0 {
		return core.Synthesis{}, fmt.Errorf("no evidence to synthesize")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alternatives[s.next], nil
}

// Regenerate implements core.Regenerator.
func (s *Static) Regenerate(_ context.Context, _ core.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = (s.next + 1) % len(s.alternatives)
	return nil
}
