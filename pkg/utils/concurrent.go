package utils

import (
	"context"
	"hash/fnv"
	"sync"
)

// ShardFunc derives the grouping key for an item. Items that share a key are
// processed by the same worker, in submission order.
type ShardFunc[T any] func(item T) string

// ShardedPool runs items across a fixed set of workers while keeping items
// with equal shard keys sequential. The importer shards entities by natural
// key so two mentions of the same entity in one batch cannot race each other
// into duplicate nodes.
type ShardedPool[T any] struct {
	workers int
	process func(ctx context.Context, item T) error
}

// NewShardedPool creates a pool with the given worker count; values below 1
// run everything on a single worker.
func NewShardedPool[T any](workers int, process func(ctx context.Context, item T) error) *ShardedPool[T] {
	if workers <= 0 {
		workers = 1
	}
	return &ShardedPool[T]{workers: workers, process: process}
}

// Run partitions items by shard key and processes the shards concurrently.
// The returned slice has one entry per item, nil on success. Panics in the
// process function are recovered and converted to PanicError. Once the
// context is cancelled the remaining items fail with the context's error.
func (p *ShardedPool[T]) Run(ctx context.Context, items []T, shard ShardFunc[T]) []error {
	if len(items) == 0 {
		return nil
	}

	type indexed struct {
		index int
		item  T
	}

	errs := make([]error, len(items))
	shards := make([][]indexed, p.workers)
	for i, item := range items {
		s := shardIndex(shard(item), i, p.workers)
		shards[s] = append(shards[s], indexed{index: i, item: item})
	}

	var wg sync.WaitGroup
	for _, queue := range shards {
		if len(queue) == 0 {
			continue
		}
		wg.Add(1)
		go func(queue []indexed) {
			defer wg.Done()
			for _, entry := range queue {
				if err := ctx.Err(); err != nil {
					errs[entry.index] = err
					continue
				}
				func() {
					defer RecoverWithCallback(func(err error) {
						errs[entry.index] = err
					})
					errs[entry.index] = p.process(ctx, entry.item)
				}()
			}
		}(queue)
	}
	wg.Wait()
	return errs
}

// shardIndex hashes the key into a bucket. Items without a key spread by
// position, since nothing orders them relative to each other.
func shardIndex(key string, position, buckets int) int {
	if buckets <= 1 {
		return 0
	}
	if key == "" {
		return position % buckets
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(buckets))
}

// Batch splits items into consecutive slices of at most batchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 10
	}
	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
