package registry

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/pharmaintel/core"
)

// Catalog is the on-disk shape of an agent catalog:
//
//	agents:
//	  - id: clinical
//	    name: Clinical Trials
//	    order: 0
type Catalog struct {
	Agents []core.AgentIdentity `yaml:"agents"`
}

// Resolver maps a catalog identity to the agent implementation serving it.
type Resolver func(id core.AgentIdentity) (core.Agent, error)

// LoadCatalog decodes a YAML catalog. Unknown fields are rejected.
func LoadCatalog(r io.Reader) ([]core.AgentIdentity, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, core.NewConfigurationError("decode catalog: %v", err)
	}
	return c.Agents, nil
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) ([]core.AgentIdentity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewConfigurationError("open catalog: %v", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// FromCatalog resolves every identity and builds a validated Registry.
func FromCatalog(ids []core.AgentIdentity, resolve Resolver) (*Registry, error) {
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		a, err := resolve(id)
		if err != nil {
			return nil, core.NewConfigurationError("resolve agent %q: %v", id.ID, err)
		}
		entries = append(entries, Entry{Identity: id, Agent: a})
	}
	return New(entries...)
}

// MarshalCatalog encodes identities in catalog form.
func MarshalCatalog(w io.Writer, ids []core.AgentIdentity) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Catalog{Agents: ids}); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}
