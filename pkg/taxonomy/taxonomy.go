// Package taxonomy provides read-only access to the entity schema: which
// entity types exist, the display order of their properties, and which
// relationship types each may participate in. The engine treats the taxonomy
// as advisory; a nil Provider disables every check it feeds.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider answers schema questions. Implementations are read-only.
type Provider interface {
	// EntityTypes lists the known entity type names in definition order.
	EntityTypes() []string
	// PropertiesFor returns the display-ordered property names for an
	// entity type, or nil when the type is unknown.
	PropertiesFor(entityType string) []string
	// RelationshipTypesFor returns the relationship types an entity type
	// may participate in. Nil means the type is unknown or unconstrained;
	// an empty slice means the type allows no relationships.
	RelationshipTypesFor(entityType string) []string
}

type entitySchema struct {
	Name          string   `yaml:"name"`
	Properties    []string `yaml:"properties"`
	Relationships []string `yaml:"relationships"`
}

type schemaFile struct {
	EntityTypes []entitySchema `yaml:"entity_types"`
}

// FileProvider is a Provider backed by a YAML schema file. Lookups are
// case-insensitive on the entity type name.
type FileProvider struct {
	order   []string
	entries map[string]entitySchema
}

// LoadFile reads and parses a taxonomy file.
func LoadFile(path string) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	provider, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return provider, nil
}

// Parse builds a FileProvider from YAML bytes. Entries without a name are
// skipped; a duplicated name keeps its first definition.
func Parse(data []byte) (*FileProvider, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	provider := &FileProvider{entries: make(map[string]entitySchema)}
	for _, entry := range file.EntityTypes {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := provider.entries[key]; dup {
			continue
		}
		entry.Name = name
		provider.order = append(provider.order, name)
		provider.entries[key] = entry
	}
	return provider, nil
}

func (p *FileProvider) EntityTypes() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *FileProvider) PropertiesFor(entityType string) []string {
	entry, ok := p.entries[strings.ToLower(strings.TrimSpace(entityType))]
	if !ok {
		return nil
	}
	return entry.Properties
}

func (p *FileProvider) RelationshipTypesFor(entityType string) []string {
	entry, ok := p.entries[strings.ToLower(strings.TrimSpace(entityType))]
	if !ok {
		return nil
	}
	return entry.Relationships
}

// KnownEntityType reports whether the provider defines the entity type. A
// nil provider accepts everything.
func KnownEntityType(p Provider, entityType string) bool {
	if p == nil {
		return true
	}
	for _, t := range p.EntityTypes() {
		if strings.EqualFold(t, entityType) {
			return true
		}
	}
	return false
}

// KnownRelationshipType reports whether the entity type may participate in
// the relationship type. A nil provider, an unknown entity type, or a type
// without a relationship constraint all accept everything.
func KnownRelationshipType(p Provider, entityType, relType string) bool {
	if p == nil {
		return true
	}
	rels := p.RelationshipTypesFor(entityType)
	if rels == nil {
		return true
	}
	for _, r := range rels {
		if strings.EqualFold(r, relType) {
			return true
		}
	}
	return false
}
