package embedder

import (
	"context"
)

// Default configuration values.
const (
	DefaultModel     = "text-embedding-3-small"
	DefaultBatchSize = 64
	defaultDims      = 1536
)

// modelDimensions maps known embedding models to their output width.
var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"all-MiniLM-L6-v2":       384,
	"all-mpnet-base-v2":      768,
}

// Client generates vector embeddings for text.
type Client interface {
	// Embed generates embeddings for the given texts, one per input, in
	// input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the width of the produced embeddings.
	Dimensions() int
	// Close cleans up any resources.
	Close() error
}

// Config holds embedding client settings shared across providers.
type Config struct {
	// Model names the embedding model. Empty selects DefaultModel.
	Model string
	// BaseURL overrides the provider endpoint, for proxies and compatible
	// servers.
	BaseURL string
	// BatchSize caps how many texts go into one provider request.
	BatchSize int
	// Dimensions overrides the embedding width for models not in the
	// known-model table.
	Dimensions int
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Dimensions <= 0 {
		if dims, ok := modelDimensions[c.Model]; ok {
			c.Dimensions = dims
		} else {
			c.Dimensions = defaultDims
		}
	}
	return c
}
