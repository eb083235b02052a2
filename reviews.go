package graphfold

import (
	"context"
	"fmt"

	"github.com/graphfold/graphfold/pkg/match"
	"github.com/graphfold/graphfold/pkg/types"
)

// ApplyReview resubmits a pending review record with a human decision.
// DecisionMerge applies the held entity's properties onto the existing
// node; DecisionSeparate creates the node that was withheld. The import
// runs before the record is marked complete, so a crash in between leaves
// the record pending and the replayed import is an idempotent MERGE.
func (c *Client) ApplyReview(ctx context.Context, id string, verdict types.ReviewDecision, notes, reviewer string) (*types.ReviewRecord, error) {
	if !verdict.Valid() {
		return nil, fmt.Errorf("invalid review decision %q", verdict)
	}
	record, err := c.queue.Get(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %q", ErrReviewNotFound, id)
	}
	if !record.Pending() {
		return nil, fmt.Errorf("%w: %q", ErrReviewCompleted, id)
	}

	if err := c.applyReviewImport(ctx, record, verdict); err != nil {
		return nil, err
	}

	completed, err := c.queue.Complete(id, verdict, notes, reviewer)
	if err != nil {
		return nil, fmt.Errorf("import applied but completing review %s failed: %w", id, err)
	}
	if completed == nil {
		return nil, fmt.Errorf("%w: %q", ErrReviewCompleted, id)
	}
	c.logger.Info("review applied",
		"review_id", id,
		"decision", string(verdict),
		"entity_type", record.EntityType,
		"reviewer", reviewer)
	return completed, nil
}

func (c *Client) applyReviewImport(ctx context.Context, record *types.ReviewRecord, verdict types.ReviewDecision) error {
	props := record.NewAsset.Clone()
	if props == nil {
		props = types.Properties{}
	}

	var key string
	switch verdict {
	case types.DecisionMerge:
		key = record.ExistingAsset.String("natural_key")
		if key == "" {
			key = record.ExistingAsset.String("name")
		}
		if key == "" {
			return fmt.Errorf("review %s: existing node snapshot has no natural key", record.ID)
		}
	case types.DecisionSeparate:
		key = snapshotNaturalKey(props)
		if key == "" {
			return fmt.Errorf("review %s: held entity snapshot has no identity", record.ID)
		}
		if c.embedder != nil {
			matcher := c.registry.Resolve(record.EntityType)
			if text := matcher.CanonicalText(props); text != "" {
				embedding, err := c.embedder.EmbedSingle(ctx, text)
				if err != nil {
					c.logger.Warn("review embedding failed, creating node without one",
						"review_id", record.ID, "error", err)
				} else if len(embedding) > 0 {
					props["embedding"] = embedding
				}
			}
		}
	}

	if _, err := c.imp.UpsertNode(ctx, record.EntityType, key, props); err != nil {
		return fmt.Errorf("apply review %s: %w", record.ID, err)
	}
	return nil
}

// snapshotNaturalKey derives the natural key from a flattened entity
// snapshot, preferring the external id over the name like live imports
// do.
func snapshotNaturalKey(props types.Properties) string {
	if id := props.String("external_id"); id != "" {
		return match.NormalizeKey(id)
	}
	if name := props.String("name"); name != "" {
		return match.NormalizeKey(name)
	}
	return ""
}
