package match

import (
	"testing"

	"github.com/graphfold/graphfold/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()

	assert.Equal(t, "Person", reg.Resolve("Person").EntityType())
	assert.Equal(t, "Person", reg.Resolve("person").EntityType())
	assert.Equal(t, "Person", reg.Resolve("  PERSON ").EntityType())
	assert.Equal(t, "Asset", reg.Resolve("Asset").EntityType())

	// Unknown types fall back to the permissive default.
	m := reg.Resolve("Note")
	assert.Equal(t, "Default", m.EntityType())
	assert.False(t, reg.Known("Note"))
	assert.True(t, reg.Known("Document"))
}

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	custom := NewPersonMatcher(0.95)
	reg.Register(custom)

	assert.InDelta(t, 0.95, reg.Resolve("person").SimilarityThreshold(), 1e-9)
}

func TestNewBuiltinMatcher(t *testing.T) {
	m, ok := NewBuiltinMatcher("address", 0.8)
	require.True(t, ok)
	assert.Equal(t, "Address", m.EntityType())
	assert.InDelta(t, 0.8, m.SimilarityThreshold(), 1e-9)

	_, ok = NewBuiltinMatcher("Spaceship", 0.8)
	assert.False(t, ok)
}

func TestPersonMatcherExactEmail(t *testing.T) {
	m := NewPersonMatcher(0)
	a := types.Properties{"name": "Jane Cole", "email": "j@x.com"}
	b := types.Properties{"name": "J. Cole", "email": "J@X.com"}

	res := m.Match(a, b)
	assert.True(t, res.Matched)
	assert.Equal(t, MethodExactEmail, res.Method)
	assert.Equal(t, 1.0, res.Score)
}

func TestPersonMatcherExactPhone(t *testing.T) {
	m := NewPersonMatcher(0)
	a := types.Properties{"name": "Jane Cole", "phone": "+1 (303) 555-0101"}
	b := types.Properties{"name": "Jane C.", "phone": "303-555-0101"}

	res := m.Match(a, b)
	assert.True(t, res.Matched)
	assert.Equal(t, MethodExactPhone, res.Method)
}

func TestPersonMatcherShortPhonesIgnored(t *testing.T) {
	m := NewPersonMatcher(0)
	a := types.Properties{"name": "Jane", "phone": "1234"}
	b := types.Properties{"name": "Elena", "phone": "1234"}

	res := m.Match(a, b)
	assert.False(t, res.Matched)
}

func TestPersonMatcherNameEmailDomain(t *testing.T) {
	m := NewPersonMatcher(0)
	a := types.Properties{"name": "Jane Cole", "email": "jane@acme.com"}
	b := types.Properties{"name": "jane cole", "email": "j.cole@acme.com"}

	res := m.Match(a, b)
	assert.True(t, res.Matched)
	assert.Equal(t, MethodNameEmailDomain, res.Method)
}

func TestPersonMatcherNameSimilarity(t *testing.T) {
	m := NewPersonMatcher(0)
	a := types.Properties{"name": "John Smith"}
	b := types.Properties{"name": "John Smyth"}

	res := m.Match(a, b)
	assert.True(t, res.Matched)
	assert.Equal(t, MethodNameSimilarity, res.Method)
	assert.InDelta(t, 0.9, res.Score, 1e-9)
}

func TestPersonMatcherSubThresholdKeepsScore(t *testing.T) {
	m := NewPersonMatcher(0)
	a := types.Properties{"name": "Jonathan Smith"}
	b := types.Properties{"name": "John Smith"}

	res := m.Match(a, b)
	assert.False(t, res.Matched)
	assert.Equal(t, MethodNameSimilarity, res.Method)
	assert.Greater(t, res.Score, 0.5)
	assert.Less(t, res.Score, m.SimilarityThreshold())
}

func TestAddressMatcherStreetExact(t *testing.T) {
	m := NewAddressMatcher(0)
	a := types.Properties{"name": "123 Main St, Denver, CO"}
	b := types.Properties{"name": "123 Main Street, Denver, CO"}

	res := m.Match(a, b)
	assert.True(t, res.Matched)
	assert.Equal(t, MethodStreetExact, res.Method)
	assert.Equal(t, 1.0, res.Score)
}

func TestAddressMatcherPostalStreetNumber(t *testing.T) {
	m := NewAddressMatcher(0)
	a := types.Properties{"street": "123 Oak Avenue West", "postal_code": "80204"}
	b := types.Properties{"street": "123 Oak Ave", "postal_code": "80204"}

	res := m.Match(a, b)
	assert.True(t, res.Matched)
}

func TestAssetMatcherSerialExact(t *testing.T) {
	m := NewAssetMatcher(0)
	a := types.Properties{"name": "Sailboat", "serial_number": "ABC123"}
	b := types.Properties{"name": "The Sailboat", "serial_number": "abc123"}

	res := m.Match(a, b)
	assert.True(t, res.Matched)
	assert.Equal(t, MethodSerialExact, res.Method)
}

func TestAssetMatcherConflictingSerialsDampScore(t *testing.T) {
	m := NewAssetMatcher(0)
	a := types.Properties{"name": "Fishing Boat", "serial_number": "ABC123", "category": "boat"}
	b := types.Properties{"name": "Fishing Boat", "serial_number": "XYZ999", "category": "boat"}

	res := m.Match(a, b)
	assert.False(t, res.Matched)
	// Identical names would score 1.0; the serial conflict pulls the score
	// into the ambiguous band.
	assert.InDelta(t, conflictPenalty, res.Score, 1e-9)
	assert.Greater(t, res.Score, 0.5)
	assert.Less(t, res.Score, m.SimilarityThreshold())
}

func TestAssetMatcherDifferentCategoriesNoEvidence(t *testing.T) {
	m := NewAssetMatcher(0)
	a := types.Properties{"name": "Lake House", "category": "real_estate"}
	b := types.Properties{"name": "Lake House", "category": "painting"}

	res := m.Match(a, b)
	assert.False(t, res.Matched)
	assert.Equal(t, 0.0, res.Score)
}

func TestDocumentMatcher(t *testing.T) {
	m := NewDocumentMatcher(0)

	byChecksum := m.Match(
		types.Properties{"name": "Will v1", "checksum": "deadbeef"},
		types.Properties{"name": "will-final.pdf", "checksum": "DEADBEEF"},
	)
	assert.True(t, byChecksum.Matched)
	assert.Equal(t, MethodChecksumExact, byChecksum.Method)

	byFile := m.Match(
		types.Properties{"title": "Estate Will", "file_name": "will.pdf"},
		types.Properties{"title": "Last Will and Testament", "file_name": "Will.pdf"},
	)
	assert.True(t, byFile.Matched)
	assert.Equal(t, MethodFileNameExact, byFile.Method)

	byTitle := m.Match(
		types.Properties{"title": "Quarterly Report 2024"},
		types.Properties{"title": "Quarterly Report 2025"},
	)
	assert.True(t, byTitle.Matched)
	assert.Equal(t, MethodTitleSimilarity, byTitle.Method)
}

func TestEventMatcher(t *testing.T) {
	m := NewEventMatcher(0)

	sameDay := m.Match(
		types.Properties{"name": "Estate Sale", "date": "2024-06-01"},
		types.Properties{"name": "estate sale", "date": "2024-06-01"},
	)
	assert.True(t, sameDay.Matched)
	assert.Equal(t, MethodNameAndDate, sameDay.Method)

	conflict := m.Match(
		types.Properties{"name": "Estate Sale", "date": "2024-06-01"},
		types.Properties{"name": "Estate Sale", "date": "2025-01-15"},
	)
	assert.False(t, conflict.Matched)
	assert.InDelta(t, conflictPenalty, conflict.Score, 1e-9)
}

func TestDefaultMatcherExactNameOnly(t *testing.T) {
	m := NewDefaultMatcher()

	hit := m.Match(
		types.Properties{"name": "Meeting Notes"},
		types.Properties{"name": "meeting notes"},
	)
	assert.True(t, hit.Matched)
	assert.Equal(t, MethodExactName, hit.Method)

	// Near-identical names are not enough for unknown types.
	miss := m.Match(
		types.Properties{"name": "Meeting Notes"},
		types.Properties{"name": "Meeting Note"},
	)
	assert.False(t, miss.Matched)
	assert.Equal(t, 0.0, miss.Score)

	assert.Equal(t, 1.0, m.SimilarityThreshold())
	assert.Empty(t, m.CanonicalText(types.Properties{"name": "Meeting Notes"}))
}

func TestMatchersAreSymmetric(t *testing.T) {
	pairs := []struct {
		name string
		m    Matcher
		a, b types.Properties
	}{
		{"person email", NewPersonMatcher(0),
			types.Properties{"name": "Jane", "email": "j@x.com"},
			types.Properties{"name": "Janet", "email": "j@x.com"}},
		{"person names", NewPersonMatcher(0),
			types.Properties{"name": "John Smith"},
			types.Properties{"name": "Jon Smith"}},
		{"address", NewAddressMatcher(0),
			types.Properties{"name": "123 Main St, Denver, CO"},
			types.Properties{"name": "124 Main Street, Denver, CO"}},
		{"asset serial conflict", NewAssetMatcher(0),
			types.Properties{"name": "Boat", "serial_number": "A1"},
			types.Properties{"name": "Boat", "serial_number": "B2"}},
		{"document", NewDocumentMatcher(0),
			types.Properties{"title": "Will", "checksum": "aa"},
			types.Properties{"title": "Will v2", "checksum": "bb"}},
		{"event", NewEventMatcher(0),
			types.Properties{"name": "Sale", "date": "2024-01-01"},
			types.Properties{"name": "Sale", "date": "2024-02-02"}},
		{"default", NewDefaultMatcher(),
			types.Properties{"name": "Note A"},
			types.Properties{"name": "Note B"}},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.m.Match(tt.a, tt.b), tt.m.Match(tt.b, tt.a))
		})
	}
}

func TestRaisingThresholdNeverAddsMatches(t *testing.T) {
	// One substitution in nine runes: ratio ~0.889.
	a := types.Properties{"name": "Annabelle"}
	b := types.Properties{"name": "Annabella"}

	thresholds := []float64{0.5, 0.85, 0.9, 0.99}
	prevMatched := true
	for _, th := range thresholds {
		res := NewPersonMatcher(th).Match(a, b)
		if res.Matched {
			require.True(t, prevMatched,
				"threshold %v matched after a lower threshold did not", th)
		}
		prevMatched = res.Matched
	}

	assert.True(t, NewPersonMatcher(0.85).Match(a, b).Matched)
	assert.False(t, NewPersonMatcher(0.9).Match(a, b).Matched)
}
