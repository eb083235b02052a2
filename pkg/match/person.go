package match

import (
	"strings"

	"github.com/graphfold/graphfold/pkg/types"
)

// minPhoneDigits guards the exact-phone heuristic against matching on
// truncated or placeholder numbers.
const minPhoneDigits = 7

// PersonMatcher matches people. Heuristics in order: exact email, exact
// phone, name plus shared email domain, normalized full-name similarity.
type PersonMatcher struct {
	threshold float64
}

// NewPersonMatcher returns a person matcher; threshold <= 0 selects the
// default.
func NewPersonMatcher(threshold float64) *PersonMatcher {
	if threshold <= 0 {
		threshold = DefaultPersonThreshold
	}
	return &PersonMatcher{threshold: threshold}
}

func (m *PersonMatcher) EntityType() string           { return "Person" }
func (m *PersonMatcher) SimilarityThreshold() float64 { return m.threshold }
func (m *PersonMatcher) KeyProperties() []string      { return []string{"email", "phone"} }

func (m *PersonMatcher) CanonicalText(props types.Properties) string {
	return joinNonEmpty(props.String("name"), props.String("notes"), props.String("summary"))
}

func (m *PersonMatcher) Match(a, b types.Properties) types.MatchResult {
	return runHeuristics(personHeuristics, m.threshold, a, b)
}

var personHeuristics = []heuristic{
	{method: MethodExactEmail, discrete: true, check: checkExactEmail},
	{method: MethodExactPhone, discrete: true, check: checkExactPhone},
	{method: MethodNameEmailDomain, discrete: true, check: checkNameEmailDomain},
	{method: MethodNameSimilarity, check: checkNameSimilarity},
}

func checkExactEmail(a, b types.Properties) (float64, bool) {
	ea, eb := emailKey(a.String("email")), emailKey(b.String("email"))
	if ea == "" || eb == "" {
		return 0, false
	}
	if ea == eb {
		return 1, true
	}
	return 0, true
}

func checkExactPhone(a, b types.Properties) (float64, bool) {
	pa, pb := NormalizePhone(a.String("phone")), NormalizePhone(b.String("phone"))
	if len(pa) < minPhoneDigits || len(pb) < minPhoneDigits {
		return 0, false
	}
	if pa == pb {
		return 1, true
	}
	return 0, true
}

func checkNameEmailDomain(a, b types.Properties) (float64, bool) {
	da, db := emailDomain(a.String("email")), emailDomain(b.String("email"))
	if da == "" || db == "" {
		return 0, false
	}
	na, nb := NormalizeName(a.String("name")), NormalizeName(b.String("name"))
	if na == "" || nb == "" {
		return 0, false
	}
	if na == nb && da == db {
		return 1, true
	}
	return 0, true
}

func checkNameSimilarity(a, b types.Properties) (float64, bool) {
	na, nb := NormalizeName(a.String("name")), NormalizeName(b.String("name"))
	if na == "" || nb == "" {
		return 0, false
	}
	return SimilarityRatio(na, nb), true
}

// joinNonEmpty concatenates the non-empty parts with single spaces.
func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, " ")
}
