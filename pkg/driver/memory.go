package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphfold/graphfold/pkg/types"
	"github.com/graphfold/graphfold/pkg/utils"
)

type memoryNode struct {
	id        string
	labels    []string
	props     types.Properties
	embedding []float32
}

type memoryRelationship struct {
	relType  string
	sourceID string
	targetID string
	props    types.Properties
}

// MemoryStore is an in-process GraphStore used in tests and local runs. It
// mirrors the Neo4j store's merge and scoping semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[string]*memoryNode
	byKey  map[string]string
	rels   map[string]*memoryRelationship
	closed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*memoryNode),
		byKey: make(map[string]string),
		rels:  make(map[string]*memoryRelationship),
	}
}

func (m *MemoryStore) VerifyConnectivity(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return &Error{Kind: ErrorKindConnection, Op: "verify connectivity", Err: errClosed}
	}
	return nil
}

// ExecuteRead implements the raw query surface. The memory store keeps plain
// maps and refuses raw queries with a typed error.
func (m *MemoryStore) ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, &Error{Kind: ErrorKindQuery, Op: "execute read", Err: ErrUnsupportedQuery}
}

// ExecuteWrite refuses raw queries like ExecuteRead.
func (m *MemoryStore) ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, &Error{Kind: ErrorKindQuery, Op: "execute write", Err: ErrUnsupportedQuery}
}

func (m *MemoryStore) EnsureSchema(ctx context.Context, labels []string, vectorDims int) error {
	return ctx.Err()
}

func (m *MemoryStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) FindByName(ctx context.Context, label, name string, limit int) ([]*types.GraphNode, error) {
	return m.scan(ctx, "find by name", label, limit, func(node *memoryNode) bool {
		return strings.EqualFold(node.props.String("name"), name)
	})
}

func (m *MemoryStore) FindByNameContains(ctx context.Context, label, fragment string, limit int) ([]*types.GraphNode, error) {
	needle := strings.ToLower(fragment)
	return m.scan(ctx, "find by name fragment", label, limit, func(node *memoryNode) bool {
		return strings.Contains(strings.ToLower(node.props.String("name")), needle)
	})
}

func (m *MemoryStore) FindByProperty(ctx context.Context, label, key, value string, limit int) ([]*types.GraphNode, error) {
	return m.scan(ctx, "find by property", label, limit, func(node *memoryNode) bool {
		v, ok := node.props[key]
		if !ok || v == nil {
			return false
		}
		return strings.EqualFold(propertyString(v), value)
	})
}

func (m *MemoryStore) FindByNaturalKey(ctx context.Context, label, naturalKey string) (*types.GraphNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, &Error{Kind: ErrorKindConnection, Op: "find by natural key", Err: errClosed}
	}

	if label != "" {
		id, ok := m.byKey[nodeKey(scopeLabel(label), naturalKey)]
		if !ok {
			return nil, nil
		}
		return m.snapshot(m.nodes[id]), nil
	}
	for _, node := range m.nodes {
		if node.props.String("natural_key") == naturalKey {
			return m.snapshot(node), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) SearchByVector(ctx context.Context, label string, embedding []float32, opts *VectorSearchOptions) ([]VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, nil
	}
	limit := 10
	minScore := 0.0
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.MinScore > 0 {
			minScore = opts.MinScore
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, &Error{Kind: ErrorKindConnection, Op: "vector search", Err: errClosed}
	}

	scope := scopeLabel(label)
	var scored []utils.ScoredItem[*types.GraphNode]
	for _, node := range m.nodes {
		if len(node.embedding) == 0 || !hasLabel(node.labels, scope) {
			continue
		}
		score := utils.CosineSimilarity(embedding, node.embedding)
		if score < minScore {
			continue
		}
		scored = append(scored, utils.ScoredItem[*types.GraphNode]{Item: m.snapshot(node), Score: score})
	}

	top := utils.TopKByScore(scored, limit)
	hits := make([]VectorHit, 0, len(top))
	for _, item := range top {
		hits = append(hits, VectorHit{Node: item.Item, Score: item.Score})
	}
	return hits, nil
}

func (m *MemoryStore) UpsertNode(ctx context.Context, label, naturalKey string, props types.Properties) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if naturalKey == "" {
		return "", &Error{Kind: ErrorKindQuery, Op: "upsert node", Err: types.ErrMissingIdentity}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", &Error{Kind: ErrorKindConnection, Op: "upsert node", Err: errClosed}
	}

	scope := scopeLabel(label)
	now := types.FormatTime(time.Now())
	key := nodeKey(scope, naturalKey)

	incoming := props.Clone()
	if incoming == nil {
		incoming = types.Properties{}
	}
	embedding, _ := incoming["embedding"].([]float32)
	delete(incoming, "embedding")

	if id, ok := m.byKey[key]; ok {
		node := m.nodes[id]
		for k, v := range incoming {
			node.props[k] = v
		}
		node.props["updated_at"] = now
		if len(embedding) > 0 {
			node.embedding = embedding
		}
		return id, nil
	}

	node := &memoryNode{
		id:        uuid.NewString(),
		labels:    nodeLabels(scope),
		props:     incoming,
		embedding: embedding,
	}
	node.props["natural_key"] = naturalKey
	node.props["created_at"] = now
	node.props["updated_at"] = now
	m.nodes[node.id] = node
	m.byKey[key] = node.id
	return node.id, nil
}

func (m *MemoryStore) UpsertRelationship(ctx context.Context, relType, sourceID, targetID string, props types.Properties) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	relType = sanitizeRelType(relType)
	if relType == "" {
		return &Error{Kind: ErrorKindQuery, Op: "upsert relationship", Err: types.ErrMissingRelationshipType}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &Error{Kind: ErrorKindConnection, Op: "upsert relationship", Err: errClosed}
	}

	if _, ok := m.nodes[sourceID]; !ok {
		return &Error{Kind: ErrorKindQuery, Op: "upsert relationship", Err: fmt.Errorf("source %s not found", sourceID)}
	}
	if _, ok := m.nodes[targetID]; !ok {
		return &Error{Kind: ErrorKindQuery, Op: "upsert relationship", Err: fmt.Errorf("target %s not found", targetID)}
	}

	key := relKey(sourceID, relType, targetID)
	if rel, ok := m.rels[key]; ok {
		for k, v := range props.Clone() {
			rel.props[k] = v
		}
		return nil
	}
	incoming := props.Clone()
	if incoming == nil {
		incoming = types.Properties{}
	}
	m.rels[key] = &memoryRelationship{
		relType:  relType,
		sourceID: sourceID,
		targetID: targetID,
		props:    incoming,
	}
	return nil
}

func (m *MemoryStore) DeleteChunk(ctx context.Context, size int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if size <= 0 {
		size = 1000
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, &Error{Kind: ErrorKindConnection, Op: "delete chunk", Err: errClosed}
	}

	deleted := 0
	for id := range m.nodes {
		if deleted >= size {
			break
		}
		delete(m.nodes, id)
		deleted++
		for key, rel := range m.rels {
			if rel.sourceID == id || rel.targetID == id {
				delete(m.rels, key)
			}
		}
	}
	for key, id := range m.byKey {
		if _, ok := m.nodes[id]; !ok {
			delete(m.byKey, key)
		}
	}
	return deleted, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (*GraphStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, &Error{Kind: ErrorKindConnection, Op: "stats", Err: errClosed}
	}

	stats := &GraphStats{
		NodeCount:           int64(len(m.nodes)),
		RelationshipCount:   int64(len(m.rels)),
		NodesByLabel:        make(map[string]int64),
		RelationshipsByType: make(map[string]int64),
		CollectedAt:         time.Now().UTC(),
	}
	for _, node := range m.nodes {
		for _, label := range node.labels {
			if label == types.EntityLabel {
				continue
			}
			stats.NodesByLabel[label]++
		}
	}
	for _, rel := range m.rels {
		stats.RelationshipsByType[rel.relType]++
	}
	return stats, nil
}

// Relationships returns the stored relationships for assertions in tests.
func (m *MemoryStore) Relationships() []struct{ Type, SourceID, TargetID string } {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]struct{ Type, SourceID, TargetID string }, 0, len(m.rels))
	for _, rel := range m.rels {
		out = append(out, struct{ Type, SourceID, TargetID string }{rel.relType, rel.sourceID, rel.targetID})
	}
	return out
}

func (m *MemoryStore) scan(ctx context.Context, op, label string, limit int, keep func(*memoryNode) bool) ([]*types.GraphNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, &Error{Kind: ErrorKindConnection, Op: op, Err: errClosed}
	}

	limit = queryLimit(limit)
	scope := scopeLabel(label)
	var out []*types.GraphNode
	for _, node := range m.nodes {
		if len(out) >= limit {
			break
		}
		if !hasLabel(node.labels, scope) {
			continue
		}
		if keep(node) {
			out = append(out, m.snapshot(node))
		}
	}
	return out, nil
}

// snapshot copies a node so callers cannot mutate stored state.
func (m *MemoryStore) snapshot(node *memoryNode) *types.GraphNode {
	labels := make([]string, len(node.labels))
	copy(labels, node.labels)
	return &types.GraphNode{
		InternalID: node.id,
		Labels:     labels,
		Properties: node.props.Clone(),
	}
}

func nodeKey(label, naturalKey string) string {
	return label + "\x00" + naturalKey
}

func relKey(sourceID, relType, targetID string) string {
	return sourceID + "\x00" + relType + "\x00" + targetID
}

func nodeLabels(scope string) []string {
	if scope == types.EntityLabel {
		return []string{types.EntityLabel}
	}
	return []string{types.EntityLabel, scope}
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func propertyString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func queryLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}
