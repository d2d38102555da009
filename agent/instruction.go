package agent

import (
	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(req core.Request) (string, error)
}

// ProviderFunc is a functional adapter to allow ordinary functions to be used as Providers.
type ProviderFunc func(req core.Request) (string, error)

// Instruction implements Provider.
func (f ProviderFunc) Instruction(req core.Request) (string, error) { return f(req) }

// Instruction represents either a static instruction template or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template.
// The template may reference {{.Query}} and {{.SessionID}}.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(req core.Request) (string, error)) Instruction {
	return Instruction{provider: ProviderFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction has neither text nor provider.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed and
// rendering template markers against req.
func (i Instruction) Resolve(req core.Request) (string, error) {
	text := i.text
	if i.provider != nil {
		var err error
		if text, err = i.provider.Instruction(req); err != nil {
			return "", err
		}
	}
	return util.RenderTemplate(text, req)
}
