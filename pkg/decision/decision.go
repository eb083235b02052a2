// Package decision routes each incoming entity to merge, create, or human
// review based on how well the retrieved candidates match it.
package decision

import (
	"context"
	"log/slog"

	"github.com/graphfold/graphfold/pkg/match"
	"github.com/graphfold/graphfold/pkg/tiebreak"
	"github.com/graphfold/graphfold/pkg/types"
)

// Confidence bands. At or above the high threshold a confirmed match merges
// automatically; at or below the low threshold the entity is clearly new.
// Between the two nothing happens without a tiebreaker or a human.
const (
	DefaultHighThreshold = 0.90
	DefaultLowThreshold  = 0.50
)

// Outcome is the engine's routing decision for one entity.
type Outcome string

const (
	OutcomeMerge  Outcome = "merge"
	OutcomeCreate Outcome = "create"
	OutcomeReview Outcome = "review"
)

// Resolution is the full decision for one entity. Review outcomes carry the
// pending record; the entity itself is held, not imported.
type Resolution struct {
	Outcome      Outcome
	Candidate    *types.Candidate
	Score        float64
	Method       types.MatchMethod
	TiebreakUsed bool
	Record       *types.ReviewRecord
}

// Config holds the engine's confidence bands.
type Config struct {
	HighThreshold float64
	LowThreshold  float64
}

func (c Config) withDefaults() Config {
	if c.HighThreshold <= 0 {
		c.HighThreshold = DefaultHighThreshold
	}
	if c.LowThreshold <= 0 {
		c.LowThreshold = DefaultLowThreshold
	}
	return c
}

// Engine scores candidates with the type's matcher and applies the
// confidence bands. The tiebreak client is optional; without one every
// ambiguous entity goes to human review.
type Engine struct {
	registry *match.Registry
	tiebreak tiebreak.Client
	config   Config
	logger   *slog.Logger
}

// NewEngine creates a decision engine. A nil registry gets the built-in
// matchers; a nil logger falls back to slog.Default.
func NewEngine(registry *match.Registry, tiebreakClient tiebreak.Client, config Config, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = match.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		tiebreak: tiebreakClient,
		config:   config.withDefaults(),
		logger:   logger,
	}
}

// Decide resolves one entity against its retrieved candidates. It always
// returns an explicit resolution; failures along the way degrade toward
// review, never toward a silent merge.
func (e *Engine) Decide(ctx context.Context, entity *types.IncomingEntity, candidates []*types.Candidate) Resolution {
	if len(candidates) == 0 {
		return Resolution{Outcome: OutcomeCreate}
	}

	matcher := e.registry.Resolve(entity.Type)
	props := entity.Flatten()

	var (
		best          types.MatchResult
		bestCandidate *types.Candidate
	)
	for _, c := range candidates {
		if c == nil || c.GraphNode == nil {
			continue
		}
		result := e.score(matcher, props, c)
		if bestCandidate == nil || better(result, best) {
			best = result
			bestCandidate = c
		}
	}
	if bestCandidate == nil {
		return Resolution{Outcome: OutcomeCreate}
	}

	resolution := Resolution{
		Candidate: bestCandidate,
		Score:     best.Score,
		Method:    best.Method,
	}

	switch {
	case best.Matched && best.Score >= e.config.HighThreshold:
		resolution.Outcome = OutcomeMerge
		e.log(entity, resolution)
		return resolution

	case best.Score <= e.config.LowThreshold:
		resolution.Outcome = OutcomeCreate
		e.log(entity, resolution)
		return resolution
	}

	return e.breakTie(ctx, entity, props, candidates, resolution)
}

// breakTie handles the ambiguous band. The tiebreaker's received verdict is
// authoritative; an unconfigured or failing tiebreaker routes to review.
func (e *Engine) breakTie(ctx context.Context, entity *types.IncomingEntity, props types.Properties, candidates []*types.Candidate, resolution Resolution) Resolution {
	if e.tiebreak != nil {
		verdict, err := e.tiebreak.Tiebreak(ctx, entity.Type, props, candidates)
		switch {
		case err != nil:
			e.logger.Warn("tiebreak call failed, holding entity for review",
				"entity_type", entity.Type,
				"entity", entity.Name,
				"error", err)

		case verdict.Match:
			resolution.TiebreakUsed = true
			if chosen := findCandidate(candidates, verdict.CandidateID); chosen != nil {
				resolution.Outcome = OutcomeMerge
				resolution.Candidate = chosen
				resolution.Method = types.MethodAITiebreak
				e.log(entity, resolution)
				return resolution
			}
			// A verdict naming an unknown id should not happen; treat it
			// like a failed call and let a human look.
			e.logger.Warn("tiebreak verdict named an unknown candidate",
				"entity_type", entity.Type,
				"entity", entity.Name,
				"candidate_id", verdict.CandidateID)

		default:
			resolution.TiebreakUsed = true
			resolution.Outcome = OutcomeCreate
			resolution.Method = types.MethodAITiebreak
			e.log(entity, resolution)
			return resolution
		}
	}

	resolution.Outcome = OutcomeReview
	resolution.Record = buildRecord(entity, resolution.Candidate, resolution.Score)
	e.log(entity, resolution)
	return resolution
}

// score runs the matcher and, for vector candidates, folds in the stored
// similarity so the vector path can fire when the matcher found nothing
// better.
func (e *Engine) score(matcher match.Matcher, props types.Properties, c *types.Candidate) types.MatchResult {
	result := matcher.Match(props, c.Properties)
	if c.Method == types.RetrievalVector {
		vector := types.MatchResult{
			Matched: c.Similarity >= matcher.SimilarityThreshold(),
			Method:  types.MethodVector,
			Score:   c.Similarity,
		}
		if better(vector, result) {
			return vector
		}
	}
	return result
}

// better orders match results: a confirmed match beats an unconfirmed one,
// then the higher score wins.
func better(a, b types.MatchResult) bool {
	if a.Matched != b.Matched {
		return a.Matched
	}
	return a.Score > b.Score
}

func findCandidate(candidates []*types.Candidate, id string) *types.Candidate {
	if id == "" {
		return nil
	}
	for _, c := range candidates {
		if c != nil && c.GraphNode != nil && c.InternalID == id {
			return c
		}
	}
	return nil
}

// buildRecord snapshots both sides of an ambiguous pair. The candidate's
// internal id rides along in the snapshot so a merge decision can later be
// replayed against the store.
func buildRecord(entity *types.IncomingEntity, c *types.Candidate, score float64) *types.ReviewRecord {
	existing := c.Properties.Clone()
	if existing == nil {
		existing = types.Properties{}
	}
	existing["internal_id"] = c.InternalID
	return types.NewReviewRecord(entity.Type, existing, entity.Flatten(), score)
}

func (e *Engine) log(entity *types.IncomingEntity, r Resolution) {
	e.logger.Debug("entity resolved",
		"entity_type", entity.Type,
		"entity", entity.Name,
		"outcome", string(r.Outcome),
		"score", r.Score,
		"method", string(r.Method),
		"tiebreak_used", r.TiebreakUsed)
}
