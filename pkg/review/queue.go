// Package review persists ambiguous resolutions until a human decides them.
package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphfold/graphfold/pkg/types"
)

// DefaultPath is where the queue lives when no path is configured.
const DefaultPath = "data/review_queue.json"

// Queue is a file-backed review queue: one JSON array, rewritten atomically
// on every change and serialized by an in-process mutex. Records are
// append-only; completing one marks it, never removes it, so the file doubles
// as the audit trail of manual decisions.
type Queue struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// Open prepares a queue at path, creating the parent directory. The file
// itself appears on first enqueue; a missing file reads as an empty queue.
func Open(path string, logger *slog.Logger) (*Queue, error) {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create review queue directory: %w", err)
		}
	}
	return &Queue{path: path, logger: logger}, nil
}

// Path returns the queue file's location.
func (q *Queue) Path() string {
	return q.path
}

// Enqueue appends a record. Empty bookkeeping fields are filled in: id,
// pending status, creation time.
func (q *Queue) Enqueue(record *types.ReviewRecord) error {
	if record == nil {
		return errors.New("cannot enqueue nil review record")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.load()
	if err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Status == "" {
		record.Status = types.ReviewPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	records = append(records, record)
	if err := q.save(records); err != nil {
		return err
	}

	q.logger.Info("review record enqueued",
		"id", record.ID,
		"entity_type", record.EntityType,
		"pending", countPending(records))
	return nil
}

// List returns every record, oldest first.
func (q *Queue) List() ([]*types.ReviewRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// ListPending returns the records still awaiting a decision.
func (q *Queue) ListPending() ([]*types.ReviewRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.load()
	if err != nil {
		return nil, err
	}
	pending := make([]*types.ReviewRecord, 0, len(records))
	for _, r := range records {
		if r.Pending() {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// Get returns the record with the given id, or nil when absent.
func (q *Queue) Get(id string) (*types.ReviewRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

// Complete transitions a pending record to completed with the reviewer's
// decision. Completing a missing or already-completed record is a no-op
// returning (nil, nil): a crashed reviewer re-submitting must not corrupt
// the trail.
func (q *Queue) Complete(id string, decision types.ReviewDecision, notes, reviewer string) (*types.ReviewRecord, error) {
	if !decision.Valid() {
		return nil, fmt.Errorf("invalid review decision %q", decision)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID != id || !r.Pending() {
			continue
		}
		now := time.Now().UTC()
		r.Status = types.ReviewCompleted
		r.Decision = decision
		r.Notes = notes
		r.Reviewer = reviewer
		r.ReviewedAt = &now

		if err := q.save(records); err != nil {
			return nil, err
		}
		q.logger.Info("review record completed",
			"id", id,
			"decision", string(decision),
			"reviewer", reviewer)
		return r, nil
	}
	return nil, nil
}

// load reads the whole queue. A missing or empty file is an empty queue; a
// corrupt file is a loud error, never a silent truncation.
func (q *Queue) load() ([]*types.ReviewRecord, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read review queue: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []*types.ReviewRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("review queue %s is corrupt: %w", q.path, err)
	}
	return records, nil
}

// save rewrites the queue atomically: temp file then rename.
func (q *Queue) save(records []*types.ReviewRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal review queue: %w", err)
	}

	tmpPath := q.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write review queue: %w", err)
	}
	if err := os.Rename(tmpPath, q.path); err != nil {
		return fmt.Errorf("failed to replace review queue: %w", err)
	}
	return nil
}

func countPending(records []*types.ReviewRecord) int {
	n := 0
	for _, r := range records {
		if r.Pending() {
			n++
		}
	}
	return n
}
