package graphfold

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/graphfold/graphfold/pkg/decision"
	"github.com/graphfold/graphfold/pkg/importer"
	"github.com/graphfold/graphfold/pkg/taxonomy"
	"github.com/graphfold/graphfold/pkg/telemetry"
	"github.com/graphfold/graphfold/pkg/types"
	"github.com/graphfold/graphfold/pkg/utils"
)

// ImportBatch resolves and imports one extraction payload. Entities go
// first: each is validated, matched against the graph, and then merged,
// created, or enqueued for review. Relationships go second, once every
// entity of the batch that will get a node has one. Item-level failures
// are recorded in the returned stats; only an unreachable store or a
// cancelled context fails the batch as a whole. Cancellation is honored
// between entities, never in the middle of one.
func (c *Client) ImportBatch(ctx context.Context, payload *types.ExtractionPayload) (*types.ImportStats, error) {
	stats := &types.ImportStats{}
	if payload == nil {
		return stats, ErrNilPayload
	}
	if err := c.store.VerifyConnectivity(ctx); err != nil {
		return stats, fmt.Errorf("graph store unreachable: %w", err)
	}
	if err := c.ensureSchema(ctx); err != nil {
		return stats, fmt.Errorf("ensure schema: %w", err)
	}

	batchID := payload.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}
	c.logger.Info("import batch started",
		"batch_id", batchID,
		"entities", len(payload.Entities),
		"relationships", len(payload.Relationships))

	reg := importer.NewRegistry()
	if err := c.importEntities(ctx, payload.Entities, reg, batchID, stats); err != nil {
		return stats, err
	}
	if err := c.importRelationships(ctx, payload.Relationships, reg, stats); err != nil {
		return stats, err
	}

	if c.decisions != nil {
		if err := c.decisions.Flush(); err != nil {
			c.logger.Warn("decision log flush failed", "error", err)
		}
	}

	c.logger.Info("import batch finished", "batch_id", batchID, "summary", stats.Summary())
	return stats, nil
}

// ensureSchema declares constraints and indexes for every entity type the
// batch could produce: the taxonomy's types when one is loaded, plus the
// registry's known types.
func (c *Client) ensureSchema(ctx context.Context) error {
	seen := make(map[string]bool)
	var labels []string
	add := func(types []string) {
		for _, t := range types {
			key := strings.ToLower(strings.TrimSpace(t))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			labels = append(labels, t)
		}
	}
	if c.taxonomy != nil {
		add(c.taxonomy.EntityTypes())
	}
	add(c.registry.Types())

	dims := 0
	if c.embedder != nil {
		dims = c.embedder.Dimensions()
	}
	return c.store.EnsureSchema(ctx, labels, dims)
}

func (c *Client) importEntities(ctx context.Context, entities []*types.IncomingEntity, reg *importer.Registry, batchID string, stats *types.ImportStats) error {
	if c.config.Import.Workers > 1 {
		return c.importEntitiesSharded(ctx, entities, reg, batchID, stats)
	}
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.processEntity(ctx, entity, reg, batchID, stats)
	}
	return nil
}

// importEntitiesSharded fans entities out over a worker pool sharded by
// natural key, so duplicate keys inside one payload land on the same
// worker and still merge instead of racing.
func (c *Client) importEntitiesSharded(ctx context.Context, entities []*types.IncomingEntity, reg *importer.Registry, batchID string, stats *types.ImportStats) error {
	var mu sync.Mutex
	pool := utils.NewShardedPool(c.config.Import.Workers, func(ctx context.Context, entity *types.IncomingEntity) error {
		partial := &types.ImportStats{}
		c.processEntity(ctx, entity, reg, batchID, partial)
		mu.Lock()
		stats.Merge(partial)
		mu.Unlock()
		return nil
	})
	errs := pool.Run(ctx, entities, func(entity *types.IncomingEntity) string {
		if entity == nil {
			return ""
		}
		return importer.NaturalKey(entity)
	})
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		entityType, name := "", ""
		if entities[i] != nil {
			entityType, name = entities[i].Type, entities[i].Name
		}
		stats.Skipped++
		stats.AddError(types.PhaseImport, entityType, name, err)
		c.logger.Error("entity worker failed", "entity_type", entityType, "entity", name, "error", err)
	}
	return nil
}

// processEntity runs one entity through the resolve-then-import pipeline,
// recording its outcome in stats. It never fails the batch itself; a
// cancelled context surfaces through the retrieval and import errors it
// records, and the caller aborts at the next entity boundary.
func (c *Client) processEntity(ctx context.Context, entity *types.IncomingEntity, reg *importer.Registry, batchID string, stats *types.ImportStats) {
	if entity == nil {
		stats.Skipped++
		stats.AddError(types.PhaseValidate, "", "", errors.New("nil entity"))
		return
	}
	if err := entity.Validate(); err != nil {
		stats.Skipped++
		stats.AddError(types.PhaseValidate, entity.Type, entity.Name, err)
		c.logger.Warn("entity failed validation", "entity_type", entity.Type, "entity", entity.Name, "error", err)
		return
	}
	if !taxonomy.KnownEntityType(c.taxonomy, entity.Type) {
		c.logger.Warn("entity type not in taxonomy", "entity_type", entity.Type, "entity", entity.Name)
	}

	result, err := c.retriever.Candidates(ctx, entity)
	if err != nil {
		stats.Skipped++
		stats.AddError(types.PhaseRetrieve, entity.Type, entity.Name, err)
		return
	}

	resolution := c.engine.Decide(ctx, entity, result.Candidates)

	var nodeID string
	switch resolution.Outcome {
	case decision.OutcomeMerge, decision.OutcomeCreate:
		nodeID, err = c.importResolved(ctx, entity, result.Embedding, resolution, reg)
		if err != nil {
			stats.Skipped++
			stats.AddError(types.PhaseImport, entity.Type, entity.Name, err)
			c.logger.Warn("entity import failed", "entity_type", entity.Type, "entity", entity.Name, "error", err)
		} else if resolution.Outcome == decision.OutcomeMerge {
			stats.Updated++
		} else {
			stats.Created++
		}
	case decision.OutcomeReview:
		if err := c.queue.Enqueue(resolution.Record); err != nil {
			stats.Skipped++
			stats.AddError(types.PhaseDecide, entity.Type, entity.Name, fmt.Errorf("enqueue review: %w", err))
			c.logger.Error("review enqueue failed", "entity_type", entity.Type, "entity", entity.Name, "error", err)
		} else {
			stats.PendingReview++
		}
	}

	c.appendDecision(batchID, entity, len(result.Candidates), resolution, nodeID)
}

// importResolved writes a merge or create outcome to the store and
// registers the entity's aliases for the relationship pass. A merge
// reuses the winning candidate's natural key so the MERGE lands on the
// existing node; a create keys on the entity's own identity and attaches
// the retrieval embedding, if any, for future vector lookups.
func (c *Client) importResolved(ctx context.Context, entity *types.IncomingEntity, embedding []float32, resolution decision.Resolution, reg *importer.Registry) (string, error) {
	props := entity.Flatten()
	var key string
	if resolution.Outcome == decision.OutcomeMerge && resolution.Candidate != nil {
		key = candidateNaturalKey(resolution.Candidate, entity)
	} else {
		key = importer.NaturalKey(entity)
		if len(embedding) > 0 {
			props["embedding"] = embedding
		}
	}

	nodeID, err := c.imp.UpsertNode(ctx, entity.Type, key, props)
	if err != nil {
		return "", err
	}
	reg.RegisterEntity(entity, key, nodeID)
	if resolution.Outcome == decision.OutcomeMerge && resolution.Candidate != nil {
		reg.Register(nodeID, resolution.Candidate.Name())
	}
	return nodeID, nil
}

// candidateNaturalKey returns the key the existing node is stored under,
// falling back to its name and finally to the incoming entity's own key
// for nodes predating natural keys.
func candidateNaturalKey(candidate *types.Candidate, entity *types.IncomingEntity) string {
	if key := candidate.NaturalKey(); key != "" {
		return key
	}
	if name := candidate.Name(); name != "" {
		return name
	}
	return importer.NaturalKey(entity)
}

func (c *Client) appendDecision(batchID string, entity *types.IncomingEntity, candidates int, resolution decision.Resolution, nodeID string) {
	if c.decisions == nil {
		return
	}
	record := telemetry.DecisionRecord{
		BatchID:        batchID,
		EntityType:     entity.Type,
		EntityName:     entity.Name,
		ExternalID:     entity.ExternalID,
		Outcome:        string(resolution.Outcome),
		Score:          resolution.Score,
		Method:         string(resolution.Method),
		TiebreakUsed:   resolution.TiebreakUsed,
		CandidateCount: candidates,
		NodeID:         nodeID,
	}
	if resolution.Record != nil {
		record.ReviewID = resolution.Record.ID
	}
	if err := c.decisions.Append(record); err != nil {
		c.logger.Warn("decision telemetry append failed", "error", err)
	}
}

func (c *Client) importRelationships(ctx context.Context, rels []*types.IncomingRelationship, reg *importer.Registry, stats *types.ImportStats) error {
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rel == nil {
			stats.AddError(types.PhaseRelationship, "", "", errors.New("nil relationship"))
			continue
		}
		if err := rel.Validate(); err != nil {
			stats.AddError(types.PhaseRelationship, "", rel.Type, err)
			continue
		}
		if !c.relationshipTypeKnown(rel.Type) {
			c.logger.Warn("relationship type not in taxonomy", "relationship", rel.Type)
		}

		sourceID, err := c.imp.ResolveEndpoint(ctx, reg, rel.SourceID)
		if err != nil {
			c.recordEndpointFailure(stats, rel, "source", rel.SourceID, err)
			continue
		}
		targetID, err := c.imp.ResolveEndpoint(ctx, reg, rel.TargetID)
		if err != nil {
			c.recordEndpointFailure(stats, rel, "target", rel.TargetID, err)
			continue
		}

		if err := c.imp.UpsertRelationship(ctx, sourceID, rel.Type, targetID, rel.Properties); err != nil {
			stats.AddError(types.PhaseRelationship, "", rel.Type, err)
			c.logger.Warn("relationship import failed", "relationship", rel.Type, "error", err)
			continue
		}
		stats.RelationshipsCreated++
	}
	return nil
}

func (c *Client) recordEndpointFailure(stats *types.ImportStats, rel *types.IncomingRelationship, side, ref string, err error) {
	stats.AddError(types.PhaseRelationship, "", rel.Type, fmt.Errorf("%s %q: %w", side, ref, err))
	c.logger.Warn("relationship endpoint unresolved",
		"relationship", rel.Type,
		"side", side,
		"ref", ref,
		"error", err)
}

// relationshipTypeKnown reports whether any taxonomy entity type allows
// the relationship type. With no taxonomy, or a taxonomy that constrains
// no entity type, everything is allowed.
func (c *Client) relationshipTypeKnown(relType string) bool {
	if c.taxonomy == nil {
		return true
	}
	constrained := false
	for _, entityType := range c.taxonomy.EntityTypes() {
		allowed := c.taxonomy.RelationshipTypesFor(entityType)
		if allowed == nil {
			continue
		}
		constrained = true
		for _, t := range allowed {
			if strings.EqualFold(t, relType) {
				return true
			}
		}
	}
	return !constrained
}
