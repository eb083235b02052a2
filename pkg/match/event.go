package match

import (
	"github.com/graphfold/graphfold/pkg/types"
)

// EventMatcher matches events. Heuristics in order: name plus identical
// date, then name similarity with differing dates damped the same way
// conflicting asset serials are.
type EventMatcher struct {
	threshold float64
}

// NewEventMatcher returns an event matcher; threshold <= 0 selects the
// default.
func NewEventMatcher(threshold float64) *EventMatcher {
	if threshold <= 0 {
		threshold = DefaultEventThreshold
	}
	return &EventMatcher{threshold: threshold}
}

func (m *EventMatcher) EntityType() string           { return "Event" }
func (m *EventMatcher) SimilarityThreshold() float64 { return m.threshold }
func (m *EventMatcher) KeyProperties() []string      { return nil }

func (m *EventMatcher) CanonicalText(props types.Properties) string {
	return joinNonEmpty(props.String("name"), props.String("location"), props.String("description"))
}

func (m *EventMatcher) Match(a, b types.Properties) types.MatchResult {
	return runHeuristics(eventHeuristics, m.threshold, a, b)
}

var eventHeuristics = []heuristic{
	{method: MethodNameAndDate, discrete: true, check: checkNameAndDate},
	{method: MethodNameSimilarity, check: checkEventNameSimilarity},
}

func eventDate(props types.Properties) string {
	for _, key := range []string{"date", "start_date", "occurred_at"} {
		if s := NormalizeName(props.String(key)); s != "" {
			return s
		}
	}
	return ""
}

func checkNameAndDate(a, b types.Properties) (float64, bool) {
	da, db := eventDate(a), eventDate(b)
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

func checkEventNameSimilarity(a, b types.Properties) (float64, bool) {
	na, nb := NormalizeName(a.String("name")), NormalizeName(b.String("name"))
	if na == "" || nb == "" {
		return 0, false
	}
	score := SimilarityRatio(na, nb)
	if da, db := eventDate(a), eventDate(b); da != "" && db != "" && da != db {
		score *= conflictPenalty
	}
	return score, true
}
