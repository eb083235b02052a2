// Package embedder provides text embedding clients for vector retrieval.
//
// This package defines the Client interface and provides implementations for
// OpenAI and for local models via go-embedeverything, plus a persistent cache
// decorator.
//
// # Supported Providers
//
// The following embedding providers are supported:
//   - OpenAI: text-embedding-3-small, text-embedding-3-large, text-embedding-ada-002
//   - EmbedEverything: local embedding models, no network required
//
// # Usage
//
//	// Create an OpenAI embedder
//	client := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{
//	    Model:     "text-embedding-3-small",
//	    BatchSize: 64,
//	})
//
//	// Embed text
//	embeddings, err := client.Embed(ctx, []string{"hello world"})
//
// # Caching
//
// NewCachedClient wraps any Client with a disk-backed cache keyed on the
// model and input text, so re-importing a batch does not re-embed unchanged
// canonical texts. Cache failures degrade to a miss, never to a pipeline
// error.
package embedder
