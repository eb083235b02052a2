package match

import (
	"github.com/graphfold/graphfold/pkg/types"
)

// AddressMatcher matches postal addresses. Heuristics in order: normalized
// street-line equality, postal code plus house number, normalized
// full-address similarity. Addresses carry no unique identifier, so there
// are no key properties for exact retrieval.
type AddressMatcher struct {
	threshold float64
}

// NewAddressMatcher returns an address matcher; threshold <= 0 selects the
// default. The default is looser than for names because addresses have many
// equivalent written forms.
func NewAddressMatcher(threshold float64) *AddressMatcher {
	if threshold <= 0 {
		threshold = DefaultAddressThreshold
	}
	return &AddressMatcher{threshold: threshold}
}

func (m *AddressMatcher) EntityType() string           { return "Address" }
func (m *AddressMatcher) SimilarityThreshold() float64 { return m.threshold }
func (m *AddressMatcher) KeyProperties() []string      { return nil }

func (m *AddressMatcher) CanonicalText(props types.Properties) string {
	return NormalizeStreet(fullAddress(props))
}

func (m *AddressMatcher) Match(a, b types.Properties) types.MatchResult {
	return runHeuristics(addressHeuristics, m.threshold, a, b)
}

var addressHeuristics = []heuristic{
	{method: MethodStreetExact, discrete: true, check: checkStreetExact},
	{method: MethodPostalStreetNum, discrete: true, check: checkPostalStreetNumber},
	{method: MethodAddressSimilarity, check: checkAddressSimilarity},
}

// streetLine picks the best available street line: a dedicated street
// property, or the entity name, which for Address entities is usually the
// written address itself.
func streetLine(props types.Properties) string {
	for _, key := range []string{"street", "street_address", "address"} {
		if s := props.String(key); s != "" {
			return s
		}
	}
	return props.String("name")
}

// fullAddress assembles street, city, state and postal code when present,
// falling back to the street line alone.
func fullAddress(props types.Properties) string {
	return joinNonEmpty(
		streetLine(props),
		props.String("city"),
		props.String("state"),
		postalCode(props),
	)
}

func postalCode(props types.Properties) string {
	for _, key := range []string{"postal_code", "zip", "zip_code"} {
		if s := props.String(key); s != "" {
			return s
		}
	}
	return ""
}

func checkStreetExact(a, b types.Properties) (float64, bool) {
	sa, sb := NormalizeStreet(streetLine(a)), NormalizeStreet(streetLine(b))
	if sa == "" || sb == "" {
		return 0, false
	}
	if sa == sb {
		return 1, true
	}
	return 0, true
}

func checkPostalStreetNumber(a, b types.Properties) (float64, bool) {
	pa, pb := NormalizeName(postalCode(a)), NormalizeName(postalCode(b))
	if pa == "" || pb == "" {
		return 0, false
	}
	na, nb := streetNumber(streetLine(a)), streetNumber(streetLine(b))
	if na == "" || nb == "" {
		return 0, false
	}
	if pa == pb && na == nb {
		return 1, true
	}
	return 0, true
}

func checkAddressSimilarity(a, b types.Properties) (float64, bool) {
	fa, fb := NormalizeStreet(fullAddress(a)), NormalizeStreet(fullAddress(b))
	if fa == "" || fb == "" {
		return 0, false
	}
	return SimilarityRatio(fa, fb), true
}
