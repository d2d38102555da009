package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/logging"
	"github.com/hupe1980/pharmaintel/model"
)

// DefaultPrompt is the user turn sent when ModelAgentOptions.Prompt is unset.
const DefaultPrompt = "Research question: {{.Query}}\n\nReport only the evidence relevant to your domain in a short paragraph."

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	// Instruction is the system prompt describing the agent's domain.
	Instruction Instruction
	// Prompt is the user turn; defaults to DefaultPrompt.
	Prompt Instruction
	// EnableStreaming requests a streamed completion. The contribution is the
	// same either way; streaming only changes how the provider delivers it.
	EnableStreaming bool
	// MaxChars truncates the contribution text (0 = unlimited).
	MaxChars int
	Logger   logging.Logger
}

// ModelAgent asks a language model for evidence in one rationale category.
type ModelAgent struct {
	name     string
	category core.Category
	llm      model.Model
	opts     ModelAgentOptions
	logger   logging.Logger
}

// NewModelAgent creates a model-backed agent contributing to category.
func NewModelAgent(name string, category core.Category, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Prompt: NewInstructionFromText(DefaultPrompt),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Prompt.IsZero() {
		opts.Prompt = NewInstructionFromText(DefaultPrompt)
	}

	return &ModelAgent{
		name:     name,
		category: category,
		llm:      llm,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Name returns the agent's name.
func (a *ModelAgent) Name() string { return a.name }

// Category returns the rationale category the agent contributes to.
func (a *ModelAgent) Category() core.Category { return a.category }

// Run implements core.Agent.
func (a *ModelAgent) Run(ctx context.Context, req core.Request) (core.Contribution, error) {
	system, err := a.opts.Instruction.Resolve(req)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("%s: resolve instruction: %w", a.name, err)
	}
	prompt, err := a.opts.Prompt.Resolve(req)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("%s: resolve prompt: %w", a.name, err)
	}

	mreq := model.UserRequest(system, prompt)
	mreq.Stream = a.opts.EnableStreaming

	start := time.Now()
	text, err := model.GenerateText(ctx, a.llm, mreq)
	info := a.llm.Info()
	if err != nil {
		a.logger.Error("model call failed", "agent", a.name, "provider", info.Provider, "model", info.Name, "error", err)
		return core.Contribution{}, fmt.Errorf("%s: %w", a.name, err)
	}
	a.logger.Debug("model call finished", "agent", a.name, "provider", info.Provider, "duration", time.Since(start))

	text = strings.TrimSpace(text)
	if a.opts.MaxChars > 0 && len([]rune(text)) > a.opts.MaxChars {
		text = string([]rune(text)[:a.opts.MaxChars])
	}

	return core.Contribution{Category: a.category, Text: text}, nil
}
