// Package telemetry records every resolution outcome to columnar Parquet
// files, the audit complement to the human review queue. Analysts tune the
// confidence thresholds against this log.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// DefaultBatchSize is how many records buffer before an automatic flush.
const DefaultBatchSize = 100

// DecisionRecord is one resolved entity in the audit log.
type DecisionRecord struct {
	ID             string    `parquet:"id"`
	Timestamp      time.Time `parquet:"timestamp"`
	BatchID        string    `parquet:"batch_id"`
	EntityType     string    `parquet:"entity_type"`
	EntityName     string    `parquet:"entity_name"`
	ExternalID     string    `parquet:"external_id"`
	Outcome        string    `parquet:"outcome"`
	Score          float64   `parquet:"score"`
	Method         string    `parquet:"method"`
	TiebreakUsed   bool      `parquet:"tiebreak_used"`
	CandidateCount int       `parquet:"candidate_count"`
	NodeID         string    `parquet:"node_id"`
	ReviewID       string    `parquet:"review_id"`
}

// DecisionLog buffers decision records and writes each full batch to its own
// Parquet file. A failed append never blocks an import; callers log and move
// on.
type DecisionLog struct {
	dir       string
	batchSize int
	logger    *slog.Logger

	mu     sync.Mutex
	buffer []DecisionRecord
}

// NewDecisionLog creates the output directory and an empty log. A batchSize
// of zero or less uses DefaultBatchSize.
func NewDecisionLog(dir string, batchSize int, logger *slog.Logger) (*DecisionLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionLog{
		dir:       dir,
		batchSize: batchSize,
		logger:    logger,
		buffer:    make([]DecisionRecord, 0, batchSize),
	}, nil
}

// Append buffers one record, filling in the id and timestamp when absent. A
// full buffer flushes to a new file.
func (l *DecisionLog) Append(record DecisionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, record)
	if len(l.buffer) >= l.batchSize {
		return l.flush()
	}
	return nil
}

// Flush writes any buffered records out immediately.
func (l *DecisionLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

// Close flushes the remaining buffer.
func (l *DecisionLog) Close() error {
	return l.Flush()
}

// Dir returns the directory the log writes into.
func (l *DecisionLog) Dir() string {
	return l.dir
}

// flush writes the buffer to a fresh timestamped file. Caller holds the lock.
func (l *DecisionLog) flush() error {
	if len(l.buffer) == 0 {
		return nil
	}

	filename := fmt.Sprintf("decisions_%s_%d.parquet", time.Now().Format("20060102_150405"), time.Now().UnixNano())
	path := filepath.Join(l.dir, filename)
	if err := parquet.WriteFile(path, l.buffer); err != nil {
		return fmt.Errorf("write decision log %s: %w", filename, err)
	}

	l.logger.Debug("decision log flushed", "file", filename, "records", len(l.buffer))
	l.buffer = l.buffer[:0]
	return nil
}
