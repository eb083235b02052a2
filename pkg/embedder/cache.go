package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// CachedClient wraps a Client with a disk-backed embedding cache. Keys are
// derived from the namespace (typically the model name) and the input text,
// so switching models never serves stale vectors.
//
// The cache is best-effort: read and write failures are logged and treated
// as misses.
type CachedClient struct {
	inner     Client
	db        *badger.DB
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedClient opens (or creates) a badger cache at path and wraps inner
// with it. A zero ttl keeps entries until the cache directory is removed.
func NewCachedClient(inner Client, path, namespace string, ttl time.Duration, logger *slog.Logger) (*CachedClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache at %s: %w", path, err)
	}
	return &CachedClient{
		inner:     inner,
		db:        db,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}, nil
}

// Embed returns cached embeddings where available and delegates the misses
// to the wrapped client in one batch.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := c.lookup(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	request := make([]string, len(missing))
	for i, idx := range missing {
		request[i] = texts[idx]
	}
	embeddings, err := c.inner.Embed(ctx, request)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(request) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(request), len(embeddings))
	}

	for i, idx := range missing {
		out[idx] = embeddings[i]
		c.store(texts[idx], embeddings[i])
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *CachedClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// Dimensions returns the wrapped client's embedding width.
func (c *CachedClient) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the cache and the wrapped client.
func (c *CachedClient) Close() error {
	return errors.Join(c.db.Close(), c.inner.Close())
}

func (c *CachedClient) lookup(text string) ([]float32, bool) {
	key := c.key(text)
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &vec)
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("embedding cache read failed", "error", err)
		}
		return nil, false
	}
	return vec, true
}

func (c *CachedClient) store(text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		c.logger.Warn("embedding cache encode failed", "error", err)
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(c.key(text), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}
}

func (c *CachedClient) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return sum[:]
}
