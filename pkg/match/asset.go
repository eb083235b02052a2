package match

import (
	"github.com/graphfold/graphfold/pkg/types"
)

// AssetMatcher matches physical or financial assets. Heuristics in order:
// exact serial number, then name similarity gated on category agreement.
// Differing serial numbers are contrary evidence: they damp the name score
// into the ambiguous band so same-named assets with distinct serials go to
// review rather than auto-merging.
type AssetMatcher struct {
	threshold float64
}

// NewAssetMatcher returns an asset matcher; threshold <= 0 selects the
// default.
func NewAssetMatcher(threshold float64) *AssetMatcher {
	if threshold <= 0 {
		threshold = DefaultAssetThreshold
	}
	return &AssetMatcher{threshold: threshold}
}

func (m *AssetMatcher) EntityType() string           { return "Asset" }
func (m *AssetMatcher) SimilarityThreshold() float64 { return m.threshold }
func (m *AssetMatcher) KeyProperties() []string      { return []string{"serial_number"} }

func (m *AssetMatcher) CanonicalText(props types.Properties) string {
	return joinNonEmpty(props.String("name"), props.String("category"), props.String("description"))
}

func (m *AssetMatcher) Match(a, b types.Properties) types.MatchResult {
	return runHeuristics(assetHeuristics, m.threshold, a, b)
}

var assetHeuristics = []heuristic{
	{method: MethodSerialExact, discrete: true, check: checkSerialExact},
	{method: MethodNameSimilarity, check: checkAssetNameSimilarity},
}

func serialOf(props types.Properties) string {
	return NormalizeName(props.String("serial_number"))
}

func checkSerialExact(a, b types.Properties) (float64, bool) {
	sa, sb := serialOf(a), serialOf(b)
	if sa == "" || sb == "" {
		return 0, false
	}
	if sa == sb {
		return 1, true
	}
	return 0, true
}

func checkAssetNameSimilarity(a, b types.Properties) (float64, bool) {
	ca, cb := NormalizeName(a.String("category")), NormalizeName(b.String("category"))
	if ca != "" && cb != "" && ca != cb {
		// Different categories: not comparable on name alone.
		return 0, false
	}
	na, nb := NormalizeName(a.String("name")), NormalizeName(b.String("name"))
	if na == "" || nb == "" {
		return 0, false
	}
	score := SimilarityRatio(na, nb)
	if sa, sb := serialOf(a), serialOf(b); sa != "" && sb != "" && sa != sb {
		score *= conflictPenalty
	}
	return score, true
}
