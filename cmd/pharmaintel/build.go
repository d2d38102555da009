package main

import (
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/pharmaintel"
	"github.com/hupe1980/pharmaintel/config"
	"github.com/hupe1980/pharmaintel/core"
	"github.com/hupe1980/pharmaintel/model"
	"github.com/hupe1980/pharmaintel/model/anthropic"
	"github.com/hupe1980/pharmaintel/model/openai"
	"github.com/hupe1980/pharmaintel/registry"
	"github.com/hupe1980/pharmaintel/session/sqlite"
	"github.com/hupe1980/pharmaintel/synthesis"
)

// buildModel returns the language model for the configured provider, or nil
// for the static provider.
func buildModel(cfg *config.Config) model.Model {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.Anthropic.APIKey
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
		})
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.OpenAI.APIKey
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
	default:
		return nil
	}
}

// catalog returns the configured agent identities.
func catalog(cfg *config.Config) ([]core.AgentIdentity, error) {
	if cfg.Catalog == "" {
		return pharmaintel.DefaultCatalog(), nil
	}
	return registry.LoadCatalogFile(cfg.Catalog)
}

// openArchive opens the SQLite archive, or returns nil when none is configured.
func openArchive(cfg *config.Config) (*sqlite.Store, error) {
	if cfg.Archive.Path == "" {
		return nil, nil
	}
	store, err := sqlite.Open(cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return store, nil
}

// buildApp assembles the pipeline. The returned close func releases the archive.
func buildApp(cfg *config.Config, logOut io.Writer) (*pharmaintel.PharmaIntel, func() error, error) {
	logger := cfg.Logger(logOut)

	ids, err := catalog(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := openArchive(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return nil }
	if store != nil {
		closeFn = store.Close
	}

	llm := buildModel(cfg)

	app, err := pharmaintel.New(func(o *pharmaintel.Options) {
		o.Catalog = ids
		o.AgentTimeout = cfg.AgentTimeout
		o.EventBufferSize = cfg.EventBuffer
		o.Logger = logger
		if store != nil {
			o.SessionStore = store
		}
		if llm != nil {
			o.Resolver = pharmaintel.ModelResolver(llm, func(o *pharmaintel.ModelResolverOptions) {
				o.Attempts = 2
				o.Logger = logger.WithComponent("agent")
			})
			o.Synthesizer = synthesis.NewModelSynthesizer(llm, func(o *synthesis.ModelSynthesizerOptions) {
				o.Logger = logger.WithComponent("synthesis")
			})
		}
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	return app, closeFn, nil
}
