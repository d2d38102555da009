package pharmaintel

import (
	"fmt"
	"time"

	"github.com/hupe1980/pharmaintel/agent"
	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/logging"
	"github.com/hupe1980/pharmaintel/model"
	"github.com/hupe1980/pharmaintel/registry"
)

// Profile describes one research domain of the default catalog.
type Profile struct {
	Identity    core.AgentIdentity
	Category    core.Category
	Instruction string // system prompt for model-backed agents
	Evidence    string // canned evidence served by static agents
}

// DefaultProfiles is the six-agent research team in dispatch order.
var DefaultProfiles = []Profile{
	{
		Identity:    core.AgentIdentity{ID: "clinical", DisplayName: "Clinical Trials", ExecutionOrder: 0},
		Category:    core.CategoryClinicalRationale,
		Instruction: "You analyse clinical trial registries and published outcomes for a drug repurposing team.",
		Evidence:    "Maintains efficacy while reducing systemic exposure by 70%",
	},
	{
		Identity:    core.AgentIdentity{ID: "patent", DisplayName: "Patent Landscape", ExecutionOrder: 1},
		Category:    core.CategoryPatentStatus,
		Instruction: "You assess patent landscapes, expiries and freedom to operate for pharmaceutical products.",
		Evidence:    "Freedom to operate - oral patents expiring",
	},
	{
		Identity:    core.AgentIdentity{ID: "internal", DisplayName: "Internal Knowledge", ExecutionOrder: 2},
		Category:    core.CategoryClinicalRationale,
		Instruction: "You summarise the company's internal formulation and development know-how.",
		Evidence:    "In-house dry powder inhaler platform already validated for small molecules",
	},
	{
		Identity:    core.AgentIdentity{ID: "web", DisplayName: "Web Intelligence", ExecutionOrder: 3},
		Category:    core.CategoryRegulatoryPath,
		Instruction: "You scan public regulatory guidance and news for approval pathways.",
		Evidence:    "505(b)(2) pathway eligible - 3-year exclusivity potential",
	},
	{
		Identity:    core.AgentIdentity{ID: "iqvia", DisplayName: "IQVIA Insights", ExecutionOrder: 4},
		Category:    core.CategoryMarketOpportunity,
		Instruction: "You interpret IQVIA sales and prescription data to size market opportunities.",
		Evidence:    "$2.3B addressable market with unmet safety needs",
	},
	{
		Identity:    core.AgentIdentity{ID: "exim", DisplayName: "EXIM Trends", ExecutionOrder: 5},
		Category:    core.CategoryMarketOpportunity,
		Instruction: "You analyse export/import trade data for active pharmaceutical ingredients.",
		Evidence:    "Stable API supply from multiple qualified exporters",
	},
}

// DefaultCatalog returns the identities of DefaultProfiles.
func DefaultCatalog() []core.AgentIdentity {
	ids := make([]core.AgentIdentity, len(DefaultProfiles))
	for i, p := range DefaultProfiles {
		ids[i] = p.Identity
	}
	return ids
}

func profile(id string) (Profile, bool) {
	for _, p := range DefaultProfiles {
		if p.Identity.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

// StaticResolver binds known catalog ids to agents serving canned evidence.
func StaticResolver() registry.Resolver {
	return func(id core.AgentIdentity) (core.Agent, error) {
		p, ok := profile(id.ID)
		if !ok {
			return nil, fmt.Errorf("no profile for agent %q", id.ID)
		}
		return agent.NewStatic(p.Category, p.Evidence), nil
	}
}

// ModelResolverOptions configures ModelResolver.
type ModelResolverOptions struct {
	// Attempts > 1 wraps every agent with agent.WithRetry.
	Attempts int
	Backoff  time.Duration
	Logger   logging.Logger
}

// ModelResolver binds known catalog ids to language-model-backed agents.
func ModelResolver(llm model.Model, optFns ...func(o *ModelResolverOptions)) registry.Resolver {
	opts := ModelResolverOptions{Attempts: 1, Backoff: time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return func(id core.AgentIdentity) (core.Agent, error) {
		p, ok := profile(id.ID)
		if !ok {
			return nil, fmt.Errorf("no profile for agent %q", id.ID)
		}
		var a core.Agent = agent.NewModelAgent(id.ID, p.Category, llm, func(o *agent.ModelAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(p.Instruction)
			o.Logger = opts.Logger
		})
		if opts.Attempts > 1 {
			a = agent.WithRetry(a, opts.Attempts, opts.Backoff)
		}
		return a, nil
	}
}
