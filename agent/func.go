package agent

import (
	"context"

	"github.com/hupe1980/pharmaintel/core"
)

// Func is a functional adapter to allow ordinary functions to be used as agents.
type Func func(ctx context.Context, req core.Request) (core.Contribution, error)

// Run implements core.Agent.
func (f Func) Run(ctx context.Context, req core.Request) (core.Contribution, error) {
	return f(ctx, req)
}
