package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/pharmaintel/core"
)

// Static returns canned evidence. Text is rendered as an instruction template,
// so it may mention {{.Query}}. Delay simulates work and honours ctx.
type Static struct {
	Category core.Category
	Text     string
	Delay    time.Duration
}

// NewStatic creates a Static agent.
func NewStatic(category core.Category, text string) *Static {
	return &Static{Category: category, Text: text}
}

// Run implements core.Agent.
func (s *Static) Run(ctx context.Context, req core.Request) (core.Contribution, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return core.Contribution{}, ctx.Err()
		}
	}

	text, err := NewInstructionFromText(s.Text).Resolve(req)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("static agent: %w", err)
	}
	return core.Contribution{Category: s.Category, Text: text}, nil
}
