package types

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// Validation errors returned when incoming data is malformed.
var (
	ErrMissingEntityType       = errors.New("incoming entity type is required")
	ErrMissingIdentity         = errors.New("incoming entity requires a name or external id")
	ErrMissingRelationshipType = errors.New("relationship type is required")
	ErrMissingEndpoint         = errors.New("relationship source and target ids are required")
)

// EntityLabel is the base label shared by every node the importer writes.
// The entity's own type is applied as an additional label.
const EntityLabel = "Entity"

// Properties is the canonical string-keyed property map used uniformly from
// extraction through import. Values are scalars or nested maps/lists; nested
// values are serialized before they reach the store.
type Properties map[string]any

// String returns the value for key as a string, or "" when the key is absent
// or holds a non-string value.
func (p Properties) String(key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Has reports whether key is present with a non-empty value.
func (p Properties) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Clone returns a deep copy of the property map. Nested maps and slices are
// copied; scalar values are shared.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Properties:
		return map[string]any(val.Clone())
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// Canonicalize returns a copy of the map with every key converted to
// snake_case, so matchers and the importer see one key form regardless of how
// the extraction step spelled it ("serialNumber" and "serial_number" collapse
// to the same key).
func (p Properties) Canonicalize() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		if m, ok := v.(map[string]any); ok {
			v = map[string]any(Properties(m).Canonicalize())
		}
		out[CanonicalKey(k)] = v
	}
	return out
}

// CanonicalKey converts a property key to snake_case.
func CanonicalKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return key
	}
	var b strings.Builder
	b.Grow(len(key) + 4)
	var prevLower bool
	for _, r := range key {
		switch {
		case r == ' ' || r == '-' || r == '.':
			b.WriteByte('_')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return b.String()
}

// IncomingEntity is one AI-extracted entity awaiting resolution. It is
// ephemeral, constructed fresh per extraction batch.
type IncomingEntity struct {
	// Type names the entity type ("Person", "Asset", ...). It selects the
	// matcher and becomes the node label.
	Type string `json:"type" mapstructure:"type"`
	// Name is the human-readable name; together with Type it forms the
	// default natural key.
	Name string `json:"name" mapstructure:"name"`
	// ExternalID, when supplied by the extraction step, takes precedence
	// over the name as the natural key.
	ExternalID string `json:"external_id,omitempty" mapstructure:"external_id"`
	// Properties carries the extracted attribute map.
	Properties Properties `json:"properties,omitempty" mapstructure:"properties"`
	// Confidence is the extractor's own confidence in this entity (0-1).
	Confidence float64 `json:"confidence,omitempty" mapstructure:"confidence"`
	// SourceText is the text span the entity was extracted from.
	SourceText string `json:"source_text,omitempty" mapstructure:"source_text"`
}

// Validate checks that the entity carries enough to be resolved and imported.
func (e *IncomingEntity) Validate() error {
	if strings.TrimSpace(e.Type) == "" {
		return ErrMissingEntityType
	}
	if strings.TrimSpace(e.Name) == "" && strings.TrimSpace(e.ExternalID) == "" {
		return ErrMissingIdentity
	}
	return nil
}

// Flatten returns the entity as a single canonical property map, including
// name and external id, suitable for matcher input and review snapshots.
func (e *IncomingEntity) Flatten() Properties {
	out := e.Properties.Canonicalize()
	if out == nil {
		out = Properties{}
	}
	if e.Name != "" {
		out["name"] = e.Name
	}
	if e.ExternalID != "" {
		out["external_id"] = e.ExternalID
	}
	if e.SourceText != "" {
		out["source_text"] = e.SourceText
	}
	return out
}

// IncomingRelationship is one AI-extracted relationship between two entities.
// Source and target reference entities by external id or name.
type IncomingRelationship struct {
	Type       string     `json:"type" mapstructure:"type"`
	SourceID   string     `json:"source_id" mapstructure:"source_id"`
	TargetID   string     `json:"target_id" mapstructure:"target_id"`
	Properties Properties `json:"properties,omitempty" mapstructure:"properties"`
}

// Validate checks the relationship references both endpoints and a type.
func (r *IncomingRelationship) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return ErrMissingRelationshipType
	}
	if strings.TrimSpace(r.SourceID) == "" || strings.TrimSpace(r.TargetID) == "" {
		return ErrMissingEndpoint
	}
	return nil
}

// ExtractionPayload is the unit of ingestion: the entities and relationships
// one extraction run produced.
type ExtractionPayload struct {
	BatchID       string                  `json:"batch_id,omitempty"`
	Entities      []*IncomingEntity       `json:"entities"`
	Relationships []*IncomingRelationship `json:"relationships,omitempty"`
}

// GraphNode is a node as the store returns it. The store owns it; graphfold
// reads and writes it only through the driver.
type GraphNode struct {
	InternalID string     `json:"internal_id"`
	Labels     []string   `json:"labels"`
	Properties Properties `json:"properties"`
}

// Name returns the node's name property.
func (n *GraphNode) Name() string {
	return n.Properties.String("name")
}

// NaturalKey returns the node's stored natural key.
func (n *GraphNode) NaturalKey() string {
	return n.Properties.String("natural_key")
}

// HasLabel reports whether the node carries the given label.
func (n *GraphNode) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// RetrievalMethod identifies which retrieval strategy surfaced a candidate.
type RetrievalMethod string

const (
	RetrievalExactName     RetrievalMethod = "exact_name"
	RetrievalFuzzyName     RetrievalMethod = "fuzzy_name"
	RetrievalPropertyExact RetrievalMethod = "property_exact"
	RetrievalVector        RetrievalMethod = "vector"
)

// Candidate is a graph node surfaced by retrieval, together with how it was
// found and, for vector hits, the similarity to the query embedding.
type Candidate struct {
	*GraphNode
	Method     RetrievalMethod `json:"method"`
	Similarity float64         `json:"similarity,omitempty"`
}

// MatchMethod names the heuristic (or synthesized path) that produced a
// match result. Matchers define their own heuristic names; the values below
// are shared across packages.
type MatchMethod string

const (
	MethodNone       MatchMethod = ""
	MethodVector     MatchMethod = "vector_similarity"
	MethodAITiebreak MatchMethod = "ai_tiebreak"
)

// MatchResult is the outcome of comparing two property sets with a matcher.
// Score is binary for discrete heuristics, the similarity ratio for
// continuous ones, and synthesized for vector and AI paths. When no
// heuristic fired, Score still carries the best sub-threshold similarity
// observed so callers can band on evidence strength.
type MatchResult struct {
	Matched bool        `json:"matched"`
	Method  MatchMethod `json:"method"`
	Score   float64     `json:"score"`
}

// FormatTime renders timestamps the way node properties store them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
