package types

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the lifecycle state of a review record.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewCompleted ReviewStatus = "completed"
)

// ReviewDecision is a reviewer's verdict on an ambiguous pair.
type ReviewDecision string

const (
	// DecisionMerge treats the new entity as the same real-world thing as
	// the existing node; its properties are merged in.
	DecisionMerge ReviewDecision = "merge"
	// DecisionSeparate treats the new entity as distinct; a new node is
	// created.
	DecisionSeparate ReviewDecision = "separate"
)

// Valid reports whether d is one of the recognized decisions.
func (d ReviewDecision) Valid() bool {
	return d == DecisionMerge || d == DecisionSeparate
}

// ReviewRecord holds one ambiguous resolution awaiting (or after) human
// review. Records are append-only: they are never deleted, only marked
// completed, forming the audit trail of manual decisions.
type ReviewRecord struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	// ExistingAsset is the flattened property snapshot of the candidate
	// node, including its internal_id and natural_key so a merge decision
	// can be replayed against the store.
	ExistingAsset Properties `json:"existing_asset"`
	// NewAsset is the flattened property snapshot of the held incoming
	// entity.
	NewAsset        Properties     `json:"new_asset"`
	ConfidenceScore float64        `json:"confidence_score"`
	Status          ReviewStatus   `json:"status"`
	Decision        ReviewDecision `json:"decision,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Reviewer        string         `json:"reviewer,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
}

// NewReviewRecord builds a pending record from the two property snapshots.
// Snapshots are deep-copied so later mutation of the sources cannot alter
// the audit trail.
func NewReviewRecord(entityType string, existing, incoming Properties, score float64) *ReviewRecord {
	return &ReviewRecord{
		ID:              uuid.New().String(),
		EntityType:      entityType,
		ExistingAsset:   existing.Clone(),
		NewAsset:        incoming.Clone(),
		ConfidenceScore: score,
		Status:          ReviewPending,
		CreatedAt:       time.Now().UTC(),
	}
}

// Pending reports whether the record still awaits a decision.
func (r *ReviewRecord) Pending() bool {
	return r.Status == ReviewPending
}
