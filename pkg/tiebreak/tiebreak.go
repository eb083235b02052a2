// Package tiebreak asks an AI judge to resolve ambiguous entity matches
// whose scores land between the automatic merge and reject thresholds.
package tiebreak

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/graphfold/graphfold/pkg/types"
)

const (
	// MaxCandidates bounds how many candidates one prompt presents.
	MaxCandidates = 5
	// maxPromptProperties bounds the property lines rendered per record.
	maxPromptProperties = 8
	// NoMatchToken is the literal answer meaning no candidate matches.
	NoMatchToken = "NO_MATCH"
)

// Verdict is the tiebreaker's answer for one entity.
type Verdict struct {
	Match       bool
	CandidateID string
}

// Client asks an external judge whether an incoming entity is the same
// real-world thing as one of the retrieved candidates. Implementations
// return an error only for transport-level failures; a clean "no match"
// answer is a successful call.
type Client interface {
	Tiebreak(ctx context.Context, entityType string, entity types.Properties, candidates []*types.Candidate) (Verdict, error)
	Close() error
}

// systemPrompt frames the task. The answer format is restated at the end of
// the user prompt so small models keep to it.
const systemPrompt = "You deduplicate entity records for a knowledge graph. " +
	"You are given a new entity and a numbered list of existing candidate records of the same type. " +
	"Decide whether the new entity refers to the same real-world thing as exactly one of the candidates. " +
	"Reply with only the id of that candidate, or " + NoMatchToken + " if none of them are the same. " +
	"Do not explain."

// promptSkip lists bookkeeping properties that never help the comparison.
var promptSkip = map[string]bool{
	"natural_key": true,
	"created_at":  true,
	"updated_at":  true,
	"embedding":   true,
	"source_text": true,
}

// BuildPrompt renders the user message for one tiebreak call. At most
// MaxCandidates candidates are included, in retrieval order.
func BuildPrompt(entityType string, entity types.Properties, candidates []*types.Candidate) string {
	var b strings.Builder
	b.WriteString("New entity:\n")
	fmt.Fprintf(&b, "  type: %s\n", entityType)
	fmt.Fprintf(&b, "  name: %s\n", entity.String("name"))
	writeProperties(&b, entity, "  ")

	b.WriteString("\nExisting candidates:\n")
	n := len(candidates)
	if n > MaxCandidates {
		n = MaxCandidates
	}
	for i := 0; i < n; i++ {
		c := candidates[i]
		if c == nil || c.GraphNode == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. id: %s\n", i+1, c.InternalID)
		fmt.Fprintf(&b, "   name: %s\n", c.GraphNode.Name())
		writeProperties(&b, c.Properties, "   ")
	}

	fmt.Fprintf(&b, "\nAnswer with the id of the matching candidate, or %s if none match.\n", NoMatchToken)
	return b.String()
}

func writeProperties(b *strings.Builder, props types.Properties, indent string) {
	keys := make([]string, 0, len(props))
	for k := range props {
		if k == "name" || promptSkip[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > maxPromptProperties {
		keys = keys[:maxPromptProperties]
	}
	for _, k := range keys {
		fmt.Fprintf(b, "%s%s: %v\n", indent, k, props[k])
	}
}

// ParseVerdict interprets the judge's raw answer. Whitespace and surrounding
// quotes or backticks are stripped; the no-match token is matched without
// case. Anything else must be the exact id of a presented candidate, and any
// other content at all counts as no match. A malformed answer can suppress a
// merge but never cause one.
func ParseVerdict(raw string, candidates []*types.Candidate) Verdict {
	answer := strings.TrimSpace(raw)
	answer = strings.Trim(answer, "\"'`")
	answer = strings.TrimSpace(answer)

	if answer == "" || strings.EqualFold(answer, NoMatchToken) {
		return Verdict{}
	}
	for _, c := range candidates {
		if c == nil || c.GraphNode == nil {
			continue
		}
		if answer == c.InternalID {
			return Verdict{Match: true, CandidateID: c.InternalID}
		}
	}
	return Verdict{}
}
