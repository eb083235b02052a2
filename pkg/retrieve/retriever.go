package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphfold/graphfold/pkg/driver"
	"github.com/graphfold/graphfold/pkg/embedder"
	"github.com/graphfold/graphfold/pkg/match"
	"github.com/graphfold/graphfold/pkg/types"
)

const (
	// DefaultLimit caps the candidates each strategy may return.
	DefaultLimit = 10
	// DefaultMinFuzzyNameLen is the name length the fuzzy strategy requires.
	// Fragments of very short names match half the graph.
	DefaultMinFuzzyNameLen = 4
)

// Config tunes candidate retrieval.
type Config struct {
	Limit           int
	MinFuzzyNameLen int
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.MinFuzzyNameLen <= 0 {
		c.MinFuzzyNameLen = DefaultMinFuzzyNameLen
	}
	return c
}

// Result is the outcome of one retrieval run. Embedding is the query vector
// from the vector strategy when it ran; the importer reuses it as the stored
// embedding for a newly created node.
type Result struct {
	Candidates []*types.Candidate
	Embedding  []float32
}

// Retriever runs the strategy ladder against a graph store. The embedder is
// optional; without one the vector strategy is disabled.
type Retriever struct {
	store    driver.GraphStore
	embedder embedder.Client
	registry *match.Registry
	config   Config
	logger   *slog.Logger
}

// NewRetriever creates a retriever. A nil registry gets the built-in
// matchers; a nil logger falls back to slog.Default.
func NewRetriever(store driver.GraphStore, embedClient embedder.Client, registry *match.Registry, config Config, logger *slog.Logger) *Retriever {
	if registry == nil {
		registry = match.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:    store,
		embedder: embedClient,
		registry: registry,
		config:   config.withDefaults(),
		logger:   logger,
	}
}

// strategy is one rung of the retrieval ladder.
type strategy struct {
	method types.RetrievalMethod
	run    func(ctx context.Context) ([]*types.Candidate, error)
}

// Candidates runs the ladder for one incoming entity, stopping at the first
// strategy that surfaces anything. Candidates are deduplicated by internal
// id, keeping the first method that found each node. Strategy failures are
// logged and treated as empty results; only context cancellation returns an
// error.
func (r *Retriever) Candidates(ctx context.Context, entity *types.IncomingEntity) (*Result, error) {
	out := &Result{}
	if entity == nil {
		return out, nil
	}

	matcher := r.registry.Resolve(entity.Type)
	props := entity.Flatten()

	ladder := []strategy{
		{types.RetrievalExactName, func(ctx context.Context) ([]*types.Candidate, error) {
			return r.exactName(ctx, entity)
		}},
		{types.RetrievalFuzzyName, func(ctx context.Context) ([]*types.Candidate, error) {
			return r.fuzzyName(ctx, entity)
		}},
		{types.RetrievalPropertyExact, func(ctx context.Context) ([]*types.Candidate, error) {
			return r.propertyExact(ctx, entity, matcher, props)
		}},
		{types.RetrievalVector, func(ctx context.Context) ([]*types.Candidate, error) {
			return r.vector(ctx, entity, matcher, props, out)
		}},
	}

	seen := make(map[string]bool)
	for _, s := range ladder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := s.run(ctx)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			r.logger.Warn("retrieval strategy failed",
				"method", string(s.method),
				"entity_type", entity.Type,
				"entity", entity.Name,
				"error", err)
			continue
		}
		for _, c := range found {
			if c == nil || c.GraphNode == nil || seen[c.InternalID] {
				continue
			}
			seen[c.InternalID] = true
			out.Candidates = append(out.Candidates, c)
		}
		if len(out.Candidates) > 0 {
			break
		}
	}
	return out, nil
}

func (r *Retriever) exactName(ctx context.Context, entity *types.IncomingEntity) ([]*types.Candidate, error) {
	name := strings.TrimSpace(entity.Name)
	if name == "" {
		return nil, nil
	}
	nodes, err := r.store.FindByName(ctx, entity.Type, name, r.config.Limit)
	if err != nil {
		return nil, err
	}
	return asCandidates(nodes, types.RetrievalExactName), nil
}

func (r *Retriever) fuzzyName(ctx context.Context, entity *types.IncomingEntity) ([]*types.Candidate, error) {
	name := strings.TrimSpace(entity.Name)
	if len(name) <= r.config.MinFuzzyNameLen {
		return nil, nil
	}
	token := match.FirstToken(name)
	if token == "" {
		return nil, nil
	}
	nodes, err := r.store.FindByNameContains(ctx, entity.Type, token, r.config.Limit)
	if err != nil {
		return nil, err
	}
	return asCandidates(nodes, types.RetrievalFuzzyName), nil
}

func (r *Retriever) propertyExact(ctx context.Context, entity *types.IncomingEntity, matcher match.Matcher, props types.Properties) ([]*types.Candidate, error) {
	var out []*types.Candidate
	seen := make(map[string]bool)
	for _, key := range matcher.KeyProperties() {
		value := propertyValue(props, key)
		if value == "" {
			continue
		}
		nodes, err := r.store.FindByProperty(ctx, entity.Type, key, value, r.config.Limit)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			if node == nil || seen[node.InternalID] {
				continue
			}
			seen[node.InternalID] = true
			out = append(out, &types.Candidate{GraphNode: node, Method: types.RetrievalPropertyExact})
		}
	}
	return out, nil
}

// vector embeds the matcher's canonical text and queries the store's nearest
// neighbours. The embedding is recorded on the result before the search so
// the importer can reuse it even when the search itself comes back empty.
func (r *Retriever) vector(ctx context.Context, entity *types.IncomingEntity, matcher match.Matcher, props types.Properties, out *Result) ([]*types.Candidate, error) {
	if r.embedder == nil {
		return nil, nil
	}
	text := strings.TrimSpace(matcher.CanonicalText(props))
	if text == "" {
		return nil, nil
	}
	embedding, err := r.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed canonical text: %w", err)
	}
	out.Embedding = embedding

	hits, err := r.store.SearchByVector(ctx, entity.Type, embedding, &driver.VectorSearchOptions{
		Limit:    r.config.Limit,
		MinScore: matcher.SimilarityThreshold(),
	})
	if err != nil {
		return nil, err
	}
	candidates := make([]*types.Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Node == nil {
			continue
		}
		candidates = append(candidates, &types.Candidate{
			GraphNode:  hit.Node,
			Method:     types.RetrievalVector,
			Similarity: hit.Score,
		})
	}
	return candidates, nil
}

func asCandidates(nodes []*types.GraphNode, method types.RetrievalMethod) []*types.Candidate {
	out := make([]*types.Candidate, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		out = append(out, &types.Candidate{GraphNode: node, Method: method})
	}
	return out
}

func propertyValue(props types.Properties, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
