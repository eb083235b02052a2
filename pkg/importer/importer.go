// Package importer writes resolved entities and relationships into the
// graph store with MERGE semantics keyed on natural keys.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/graphfold/graphfold/pkg/driver"
	"github.com/graphfold/graphfold/pkg/match"
	"github.com/graphfold/graphfold/pkg/types"
)

// ErrEndpointNotFound marks a relationship reference that resolved nowhere:
// not in the batch registry and not in the store.
var ErrEndpointNotFound = errors.New("relationship endpoint not found")

const (
	// DefaultClearChunk is how many nodes one delete chunk removes.
	DefaultClearChunk = 1000
	// clearChunkTimeout bounds a single delete chunk. The loop resumes with
	// a fresh timeout, so clearing a huge graph never pins one transaction.
	clearChunkTimeout = 30 * time.Second
)

// Importer performs the store writes. It holds no per-batch state; the
// batch-scoped Registry is passed in by the orchestrator.
type Importer struct {
	store  driver.GraphStore
	logger *slog.Logger
}

// New creates an importer. A nil logger falls back to slog.Default.
func New(store driver.GraphStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// NaturalKey derives the store key for an incoming entity: the external id
// when supplied, else the name, both in normalized key form.
func NaturalKey(e *types.IncomingEntity) string {
	if id := strings.TrimSpace(e.ExternalID); id != "" {
		return match.NormalizeKey(id)
	}
	return match.NormalizeKey(e.Name)
}

// UpsertNode merges one node by natural key within its label. Properties are
// flattened to the store's scalar model first. Creation sets all properties;
// a match merges them in, never removing absent keys.
func (im *Importer) UpsertNode(ctx context.Context, label, naturalKey string, props types.Properties) (string, error) {
	key := match.NormalizeKey(naturalKey)
	if key == "" {
		return "", types.ErrMissingIdentity
	}
	id, err := im.store.UpsertNode(ctx, label, key, FlattenProperties(props))
	if err != nil {
		return "", fmt.Errorf("upsert %s %q: %w", label, naturalKey, err)
	}
	return id, nil
}

// UpsertRelationship merges one relationship between two resolved node ids.
// The (source, type, target) triple is the relationship's identity; repeated
// imports update properties instead of stacking duplicate edges.
func (im *Importer) UpsertRelationship(ctx context.Context, fromID, relType, toID string, props types.Properties) error {
	if strings.TrimSpace(relType) == "" {
		return types.ErrMissingRelationshipType
	}
	if err := im.store.UpsertRelationship(ctx, relType, fromID, toID, FlattenProperties(props)); err != nil {
		return fmt.Errorf("upsert relationship %s: %w", relType, err)
	}
	return nil
}

// ResolveEndpoint turns a relationship reference (external id, name, or
// natural key) into a store node id. Order: batch registry, then store
// lookups by natural key, external id, and exact name, across all labels.
// A miss everywhere returns ErrEndpointNotFound.
func (im *Importer) ResolveEndpoint(ctx context.Context, reg *Registry, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrEndpointNotFound
	}

	if reg != nil {
		if id, ok := reg.Lookup(ref); ok {
			return id, nil
		}
	}

	node, err := im.store.FindByNaturalKey(ctx, "", match.NormalizeKey(ref))
	if err != nil {
		return "", fmt.Errorf("resolve %q by natural key: %w", ref, err)
	}
	if node != nil {
		return node.InternalID, nil
	}

	nodes, err := im.store.FindByProperty(ctx, "", "external_id", ref, 1)
	if err != nil {
		return "", fmt.Errorf("resolve %q by external id: %w", ref, err)
	}
	if len(nodes) > 0 {
		return nodes[0].InternalID, nil
	}

	nodes, err = im.store.FindByName(ctx, "", ref, 1)
	if err != nil {
		return "", fmt.Errorf("resolve %q by name: %w", ref, err)
	}
	if len(nodes) > 0 {
		return nodes[0].InternalID, nil
	}

	return "", fmt.Errorf("%w: %q", ErrEndpointNotFound, ref)
}

// Clear deletes every node and relationship in repeated bounded chunks,
// each under its own timeout. Returns how many nodes went.
func (im *Importer) Clear(ctx context.Context, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultClearChunk
	}
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := im.deleteChunk(ctx, chunkSize)
		if err != nil {
			return total, fmt.Errorf("clear after %d nodes: %w", total, err)
		}
		if deleted == 0 {
			return total, nil
		}
		total += deleted
		im.logger.Debug("cleared chunk", "deleted", deleted, "total", total)
	}
}

func (im *Importer) deleteChunk(ctx context.Context, size int) (int, error) {
	chunkCtx, cancel := context.WithTimeout(ctx, clearChunkTimeout)
	defer cancel()
	return im.store.DeleteChunk(chunkCtx, size)
}

// FlattenProperties converts a property map to the store's flat scalar
// model: nested maps and lists become JSON strings, timestamps RFC3339
// strings. Embedding vectors pass through for the store's vector index.
func FlattenProperties(props types.Properties) types.Properties {
	if props == nil {
		return types.Properties{}
	}
	out := make(types.Properties, len(props))
	for k, v := range props {
		out[k] = flattenValue(v)
	}
	return out
}

func flattenValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case []float32:
		return val
	case []float64:
		return val
	case time.Time:
		return types.FormatTime(val)
	case types.Properties:
		return jsonString(map[string]any(val))
	default:
		return jsonString(val)
	}
}

func jsonString(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Registry maps logical identifiers (external ids, names, natural keys) to
// store-native node ids within one batch, so relationships can reference
// entities imported moments earlier without a store round trip. Aliases are
// first-come: an alias two nodes share stays with the earlier node.
type Registry struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewRegistry creates an empty batch registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]string)}
}

// Register records aliases for one imported node. Empty aliases are ignored.
func (r *Registry) Register(nodeID string, aliases ...string) {
	if nodeID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alias := range aliases {
		key := match.NormalizeKey(alias)
		if key == "" {
			continue
		}
		if _, exists := r.ids[key]; !exists {
			r.ids[key] = nodeID
		}
	}
}

// RegisterEntity records every alias by which later relationships may
// reference the imported entity.
func (r *Registry) RegisterEntity(e *types.IncomingEntity, naturalKey, nodeID string) {
	if e == nil {
		return
	}
	r.Register(nodeID, e.ExternalID, e.Name, naturalKey)
}

// Lookup resolves a reference to a node id recorded this batch.
func (r *Registry) Lookup(ref string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[match.NormalizeKey(ref)]
	return id, ok
}

// Len returns how many aliases the registry holds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
