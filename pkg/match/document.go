package match

import (
	"github.com/graphfold/graphfold/pkg/types"
)

// DocumentMatcher matches documents. Heuristics in order: exact content
// checksum, exact normalized file name, title similarity.
type DocumentMatcher struct {
	threshold float64
}

// NewDocumentMatcher returns a document matcher; threshold <= 0 selects the
// default.
func NewDocumentMatcher(threshold float64) *DocumentMatcher {
	if threshold <= 0 {
		threshold = DefaultDocumentThreshold
	}
	return &DocumentMatcher{threshold: threshold}
}

func (m *DocumentMatcher) EntityType() string           { return "Document" }
func (m *DocumentMatcher) SimilarityThreshold() float64 { return m.threshold }
func (m *DocumentMatcher) KeyProperties() []string      { return []string{"checksum", "file_name"} }

func (m *DocumentMatcher) CanonicalText(props types.Properties) string {
	return joinNonEmpty(docTitle(props), props.String("summary"), props.String("description"))
}

func (m *DocumentMatcher) Match(a, b types.Properties) types.MatchResult {
	return runHeuristics(documentHeuristics, m.threshold, a, b)
}

var documentHeuristics = []heuristic{
	{method: MethodChecksumExact, discrete: true, check: checkChecksumExact},
	{method: MethodFileNameExact, discrete: true, check: checkFileNameExact},
	{method: MethodTitleSimilarity, check: checkTitleSimilarity},
}

func docTitle(props types.Properties) string {
	if t := props.String("title"); t != "" {
		return t
	}
	return props.String("name")
}

func checksumOf(props types.Properties) string {
	for _, key := range []string{"checksum", "content_hash"} {
		if s := NormalizeName(props.String(key)); s != "" {
			return s
		}
	}
	return ""
}

func checkChecksumExact(a, b types.Properties) (float64, bool) {
	ca, cb := checksumOf(a), checksumOf(b)
	if ca == "" || cb == "" {
		return 0, false
	}
	if ca == cb {
		return 1, true
	}
	return 0, true
}

func checkFileNameExact(a, b types.Properties) (float64, bool) {
	fa, fb := NormalizeName(a.String("file_name")), NormalizeName(b.String("file_name"))
	if fa == "" || fb == "" {
		return 0, false
	}
	if fa == fb {
		return 1, true
	}
	return 0, true
}

func checkTitleSimilarity(a, b types.Properties) (float64, bool) {
	ta, tb := NormalizeName(docTitle(a)), NormalizeName(docTitle(b))
	if ta == "" || tb == "" {
		return 0, false
	}
	return SimilarityRatio(ta, tb), true
}
