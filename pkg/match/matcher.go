package match

import (
	"strings"
	"sync"

	"github.com/graphfold/graphfold/pkg/types"
)

// Default similarity thresholds per built-in matcher. These are tuning
// parameters, not normative constants; override them at construction.
const (
	DefaultPersonThreshold   = 0.85
	DefaultAddressThreshold  = 0.75
	DefaultAssetThreshold    = 0.85
	DefaultDocumentThreshold = 0.85
	DefaultEventThreshold    = 0.85
)

// conflictPenalty damps a continuous similarity score when the two property
// sets carry conflicting unique identifiers (differing serial numbers or
// event dates). The damped score lands in the ambiguous band instead of
// auto-merging on name alone.
const conflictPenalty = 0.8

// Heuristic method names shared by the built-in matchers.
const (
	MethodExactName         types.MatchMethod = "exact_name"
	MethodExactEmail        types.MatchMethod = "exact_email"
	MethodExactPhone        types.MatchMethod = "exact_phone"
	MethodNameEmailDomain   types.MatchMethod = "name_email_domain"
	MethodNameSimilarity    types.MatchMethod = "name_similarity"
	MethodStreetExact       types.MatchMethod = "street_exact"
	MethodPostalStreetNum   types.MatchMethod = "postal_street_number"
	MethodAddressSimilarity types.MatchMethod = "address_similarity"
	MethodSerialExact       types.MatchMethod = "serial_exact"
	MethodChecksumExact     types.MatchMethod = "checksum_exact"
	MethodFileNameExact     types.MatchMethod = "file_name_exact"
	MethodTitleSimilarity   types.MatchMethod = "title_similarity"
	MethodNameAndDate       types.MatchMethod = "name_and_date"
)

// Matcher decides whether two property sets describe the same real-world
// entity of one type.
type Matcher interface {
	// EntityType names the type this matcher handles.
	EntityType() string
	// SimilarityThreshold is the score at or above which continuous
	// heuristics (and vector retrieval) treat two entities as the same.
	SimilarityThreshold() float64
	// KeyProperties lists identifying properties used for exact retrieval
	// lookups (email, serial number). Empty when the type has none.
	KeyProperties() []string
	// CanonicalText builds the embedding input for an entity of this type.
	// An empty result disables vector retrieval.
	CanonicalText(props types.Properties) string
	// Match compares two property sets. It must be symmetric.
	Match(a, b types.Properties) types.MatchResult
}

// checkFunc evaluates one heuristic. It returns the heuristic's score and
// whether the heuristic was applicable to this pair (both sides carried the
// fields it needs). Discrete checks score exactly 0 or 1.
type checkFunc func(a, b types.Properties) (score float64, applicable bool)

// heuristic is one entry in a matcher's ordered check list.
type heuristic struct {
	method   types.MatchMethod
	discrete bool
	check    checkFunc
}

// runHeuristics executes checks in order, returning on the first that fires.
// A discrete heuristic fires at score 1; a continuous one fires at the
// threshold. When nothing fires the result carries the best continuous score
// observed, so callers can band on evidence strength.
func runHeuristics(checks []heuristic, threshold float64, a, b types.Properties) types.MatchResult {
	var best types.MatchResult
	for _, h := range checks {
		score, ok := h.check(a, b)
		if !ok {
			continue
		}
		if h.discrete {
			if score >= 1 {
				return types.MatchResult{Matched: true, Method: h.method, Score: 1}
			}
			continue
		}
		if score >= threshold {
			return types.MatchResult{Matched: true, Method: h.method, Score: score}
		}
		if score > best.Score {
			best = types.MatchResult{Method: h.method, Score: score}
		}
	}
	return best
}

// Registry maps entity type names (case-insensitive) to matchers. Unknown
// types resolve to the permissive default matcher.
type Registry struct {
	mu       sync.RWMutex
	matchers map[string]Matcher
	fallback Matcher
}

// NewRegistry returns a registry pre-populated with the built-in matchers at
// their default thresholds.
func NewRegistry() *Registry {
	r := &Registry{
		matchers: make(map[string]Matcher),
		fallback: NewDefaultMatcher(),
	}
	r.Register(NewPersonMatcher(0))
	r.Register(NewAddressMatcher(0))
	r.Register(NewAssetMatcher(0))
	r.Register(NewDocumentMatcher(0))
	r.Register(NewEventMatcher(0))
	return r
}

// Register adds or replaces the matcher for its entity type.
func (r *Registry) Register(m Matcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchers[typeKey(m.EntityType())] = m
}

// Resolve returns the matcher for entityType, or the default matcher when
// none is registered.
func (r *Registry) Resolve(entityType string) Matcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.matchers[typeKey(entityType)]; ok {
		return m
	}
	return r.fallback
}

// Known reports whether a matcher is registered for entityType.
func (r *Registry) Known(entityType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.matchers[typeKey(entityType)]
	return ok
}

// Types returns the registered entity type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.matchers))
	for _, m := range r.matchers {
		out = append(out, m.EntityType())
	}
	return out
}

// NewBuiltinMatcher constructs a built-in matcher by type name with a custom
// threshold (<= 0 keeps the default). The second return is false for types
// with no built-in matcher.
func NewBuiltinMatcher(entityType string, threshold float64) (Matcher, bool) {
	switch typeKey(entityType) {
	case "person":
		return NewPersonMatcher(threshold), true
	case "address":
		return NewAddressMatcher(threshold), true
	case "asset":
		return NewAssetMatcher(threshold), true
	case "document":
		return NewDocumentMatcher(threshold), true
	case "event":
		return NewEventMatcher(threshold), true
	default:
		return nil, false
	}
}

func typeKey(entityType string) string {
	return strings.ToLower(strings.TrimSpace(entityType))
}

// DefaultMatcher is the fallback for unknown entity types: exact
// case-insensitive name equality only. Its threshold of 1.0 and empty
// canonical text keep continuous scoring and vector retrieval out of play.
type DefaultMatcher struct{}

// NewDefaultMatcher returns the permissive fallback matcher.
func NewDefaultMatcher() *DefaultMatcher {
	return &DefaultMatcher{}
}

func (m *DefaultMatcher) EntityType() string           { return "Default" }
func (m *DefaultMatcher) SimilarityThreshold() float64 { return 1.0 }
func (m *DefaultMatcher) KeyProperties() []string      { return nil }

func (m *DefaultMatcher) CanonicalText(types.Properties) string { return "" }

func (m *DefaultMatcher) Match(a, b types.Properties) types.MatchResult {
	na, nb := NormalizeName(a.String("name")), NormalizeName(b.String("name"))
	if na != "" && na == nb {
		return types.MatchResult{Matched: true, Method: MethodExactName, Score: 1}
	}
	return types.MatchResult{}
}
