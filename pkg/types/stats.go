package types

import "fmt"

// ImportPhase names the pipeline stage an import error occurred in.
type ImportPhase string

const (
	PhaseValidate     ImportPhase = "validate"
	PhaseRetrieve     ImportPhase = "retrieve"
	PhaseDecide       ImportPhase = "decide"
	PhaseImport       ImportPhase = "import"
	PhaseRelationship ImportPhase = "relationship"
)

// ImportError records one recoverable per-item failure with enough context
// to reproduce it.
type ImportError struct {
	Phase      ImportPhase `json:"phase"`
	EntityType string      `json:"entity_type,omitempty"`
	Name       string      `json:"name,omitempty"`
	Detail     string      `json:"detail"`
}

func (e ImportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s %q: %s", e.Phase, e.EntityType, e.Name, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Phase, e.Detail)
}

// ImportStats accumulates counters for a whole batch. Recoverable errors are
// appended, never discarded; a finished batch always reports every counter.
type ImportStats struct {
	Created              int           `json:"created"`
	Updated              int           `json:"updated"`
	Skipped              int           `json:"skipped"`
	PendingReview        int           `json:"pending_review"`
	RelationshipsCreated int           `json:"relationships_created"`
	Errors               []ImportError `json:"errors,omitempty"`
}

// AddError appends a recoverable failure to the batch record.
func (s *ImportStats) AddError(phase ImportPhase, entityType, name string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.Errors = append(s.Errors, ImportError{
		Phase:      phase,
		EntityType: entityType,
		Name:       name,
		Detail:     detail,
	})
}

// Merge folds another stats block into this one. Used when entities are
// processed across shards, each accumulating its own partial stats.
func (s *ImportStats) Merge(o *ImportStats) {
	if o == nil {
		return
	}
	s.Created += o.Created
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.PendingReview += o.PendingReview
	s.RelationshipsCreated += o.RelationshipsCreated
	s.Errors = append(s.Errors, o.Errors...)
}

// Summary renders the one-line batch report.
func (s *ImportStats) Summary() string {
	return fmt.Sprintf("created=%d updated=%d skipped=%d pending_review=%d relationships=%d errors=%d",
		s.Created, s.Updated, s.Skipped, s.PendingReview, s.RelationshipsCreated, len(s.Errors))
}
