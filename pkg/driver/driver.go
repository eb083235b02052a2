package driver

import (
	"context"
	"time"

	"github.com/graphfold/graphfold/pkg/types"
)

// GraphProvider identifies a graph store implementation.
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderMemory GraphProvider = "memory"
)

// VectorSearchOptions tunes a vector similarity search.
type VectorSearchOptions struct {
	Limit    int     `json:"limit"`
	MinScore float64 `json:"min_score"`
}

// VectorHit is one vector search result with its cosine similarity.
type VectorHit struct {
	Node  *types.GraphNode
	Score float64
}

// GraphStats holds counts for the stored graph.
type GraphStats struct {
	NodeCount           int64            `json:"node_count"`
	RelationshipCount   int64            `json:"relationship_count"`
	NodesByLabel        map[string]int64 `json:"nodes_by_label"`
	RelationshipsByType map[string]int64 `json:"relationships_by_type"`
	CollectedAt         time.Time        `json:"collected_at"`
}

// GraphStore is the persistence boundary for resolved entities. The label
// argument scopes a lookup to one entity type; the empty string scopes it to
// all entities.
//
// Lookups that find nothing return (nil, nil) or an empty slice, never an
// error. Errors mean the store itself failed.
type GraphStore interface {
	// VerifyConnectivity confirms the store is reachable with the configured
	// credentials.
	VerifyConnectivity(ctx context.Context) error

	// EnsureSchema creates the natural-key constraint for each label, the
	// shared name index, and, when vectorDims > 0, a cosine vector index
	// over entity embeddings. It is idempotent.
	EnsureSchema(ctx context.Context, labels []string, vectorDims int) error

	// ExecuteRead runs a parameterized read query and returns its rows as
	// key to value maps. Stores without a query language return
	// ErrUnsupportedQuery.
	ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// ExecuteWrite runs a parameterized write query and returns its rows.
	ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// FindByName returns entities whose normalized name equals name.
	FindByName(ctx context.Context, label, name string, limit int) ([]*types.GraphNode, error)

	// FindByNameContains returns entities whose name contains the fragment,
	// case-insensitively.
	FindByNameContains(ctx context.Context, label, fragment string, limit int) ([]*types.GraphNode, error)

	// FindByProperty returns entities whose property key equals value,
	// case-insensitively.
	FindByProperty(ctx context.Context, label, key, value string, limit int) ([]*types.GraphNode, error)

	// FindByNaturalKey returns the entity with the given natural key, or
	// (nil, nil) when absent.
	FindByNaturalKey(ctx context.Context, label, naturalKey string) (*types.GraphNode, error)

	// SearchByVector returns entities ranked by cosine similarity to the
	// query embedding.
	SearchByVector(ctx context.Context, label string, embedding []float32, opts *VectorSearchOptions) ([]VectorHit, error)

	// UpsertNode merges an entity on (label, naturalKey) and applies props,
	// returning the store-internal id. Existing properties not present in
	// props are left in place.
	UpsertNode(ctx context.Context, label, naturalKey string, props types.Properties) (string, error)

	// UpsertRelationship merges a relationship of relType between two
	// entities identified by store-internal ids.
	UpsertRelationship(ctx context.Context, relType, sourceID, targetID string, props types.Properties) error

	// DeleteChunk detach-deletes up to size entities and reports how many
	// were removed. Zero means the store is empty.
	DeleteChunk(ctx context.Context, size int) (int, error)

	// Stats reports node and relationship counts.
	Stats(ctx context.Context) (*GraphStats, error)

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
