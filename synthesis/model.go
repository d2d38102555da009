package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/internal/util"
	"github.com/hupe1980/pharmaintel/logging"
	"github.com/hupe1980/pharmaintel/model"
)

// DefaultInstruction is the system prompt of ModelSynthesizer.
const DefaultInstruction = `You are the lead scientist of a pharmaceutical repurposing team.
Combine the evidence gathered by your research agents into ONE product hypothesis.
Respond with a single JSON object and nothing else:
{"hypothesis": "<one sentence>", "reasoning": "<one sentence>", "confidence": <integer 0-100>}`

const promptTemplate = `Research question: {{.Query}}
{{range .Sections}}
## {{.Category}}
{{default "(no evidence)" .Text}}
{{end}}{{if .Rejected}}
The following hypotheses were rejected by the reviewer; propose a different one:
{{range .Rejected}}- {{.}}
{{end}}{{end}}`

// ErrMalformedOutput is returned when the model reply holds no usable JSON.
var ErrMalformedOutput = errors.New("model output is not a synthesis object")

// ModelSynthesizerOptions configures a ModelSynthesizer.
type ModelSynthesizerOptions struct {
	Instruction string
	Logger      logging.Logger
}

// ModelSynthesizer asks a language model to synthesize a hypothesis. Rejected
// hypotheses are remembered and excluded from later prompts.
type ModelSynthesizer struct {
	llm    model.Model
	opts   ModelSynthesizerOptions
	logger logging.Logger

	mu       sync.Mutex
	rejected []string
}

// NewModelSynthesizer creates a ModelSynthesizer.
func NewModelSynthesizer(llm model.Model, optFns ...func(o *ModelSynthesizerOptions)) *ModelSynthesizer {
	opts := ModelSynthesizerOptions{
		Instruction: DefaultInstruction,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelSynthesizer{llm: llm, opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

type section struct {
	Category core.Category
	Text     string
}

// Synthesize implements core.Synthesizer.
func (s *ModelSynthesizer) Synthesize(ctx context.Context, ev core.Evidence) (core.Synthesis, error) {
	prompt, err := s.prompt(ev)
	if err != nil {
		return core.Synthesis{}, err
	}

	text, err := model.GenerateText(ctx, s.llm, model.UserRequest(s.opts.Instruction, prompt))
	if err != nil {
		return core.Synthesis{}, err
	}

	syn, err := ParseSynthesis(text)
	if err != nil {
		s.logger.Warn("unparseable synthesis output", "session_id", ev.SessionID, "error", err)
		return core.Synthesis{}, err
	}
	return syn, nil
}

func (s *ModelSynthesizer) prompt(ev core.Evidence) (string, error) {
	sections := make([]section, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		sections = append(sections, section{Category: c, Text: ev.Rationale[c]})
	}

	s.mu.Lock()
	rejected := append([]string(nil), s.rejected...)
	s.mu.Unlock()

	return util.RenderTemplate(promptTemplate, map[string]any{
		"Query":    ev.Query,
		"Sections": sections,
		"Rejected": rejected,
	})
}

// Regenerate implements core.Regenerator.
func (s *ModelSynthesizer) Regenerate(_ context.Context, o core.Outcome) error {
	h := strings.TrimSpace(o.Result.Hypothesis)
	if h == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, h)
	return nil
}

// Rejected returns the hypotheses rejected so far.
func (s *ModelSynthesizer) Rejected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rejected...)
}

// ParseSynthesis extracts the first JSON object from a model reply,
// tolerating surrounding prose and markdown fences. Confidence is rounded and
// limited to [0, 100].
func ParseSynthesis(text string) (core.Synthesis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return core.Synthesis{}, ErrMalformedOutput
	}

	var raw struct {
		Hypothesis string  `json:"hypothesis"`
		Reasoning  string  `json:"reasoning"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return core.Synthesis{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	if strings.TrimSpace(raw.Hypothesis) == "" {
		return core.Synthesis{}, fmt.Errorf("%w: missing hypothesis", ErrMalformedOutput)
	}

	return core.Synthesis{
		Hypothesis: strings.TrimSpace(raw.Hypothesis),
		Reasoning:  strings.TrimSpace(raw.Reasoning),
		Confidence: int(math.Max(0, math.Min(100, math.Round(raw.Confidence)))),
	}, nil
}
