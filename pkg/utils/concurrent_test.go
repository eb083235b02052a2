package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestShardedPoolKeepsKeyOrder(t *testing.T) {
	t.Parallel()

	type job struct {
		key string
		seq int
	}
	items := []job{
		{"jane", 0}, {"bob", 0}, {"jane", 1}, {"ada", 0},
		{"jane", 2}, {"bob", 1}, {"ada", 1}, {"bob", 2},
	}

	var mu sync.Mutex
	seen := make(map[string][]int)

	pool := NewShardedPool(4, func(ctx context.Context, item job) error {
		mu.Lock()
		seen[item.key] = append(seen[item.key], item.seq)
		mu.Unlock()
		return nil
	})
	errs := pool.Run(context.Background(), items, func(item job) string { return item.key })

	for i, err := range errs {
		if err != nil {
			t.Errorf("item %d failed: %v", i, err)
		}
	}
	for key, seqs := range seen {
		for i := 1; i < len(seqs); i++ {
			if seqs[i] < seqs[i-1] {
				t.Errorf("key %s processed out of order: %v", key, seqs)
			}
		}
	}
}

func TestShardedPoolReportsErrorsPerItem(t *testing.T) {
	t.Parallel()

	failing := errors.New("bad item")
	pool := NewShardedPool(2, func(ctx context.Context, item string) error {
		if item == "bad" {
			return failing
		}
		return nil
	})
	errs := pool.Run(context.Background(), []string{"ok", "bad", "ok"}, func(item string) string { return item })

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("healthy items should not fail: %v", errs)
	}
	if !errors.Is(errs[1], failing) {
		t.Errorf("expected bad item error, got %v", errs[1])
	}
}

func TestShardedPoolRecoversPanics(t *testing.T) {
	t.Parallel()

	pool := NewShardedPool(2, func(ctx context.Context, item string) error {
		if item == "boom" {
			panic("worker exploded")
		}
		return nil
	})
	errs := pool.Run(context.Background(), []string{"a", "boom", "b"}, func(item string) string { return item })

	var panicErr *PanicError
	if !errors.As(errs[1], &panicErr) {
		t.Fatalf("expected PanicError, got %v", errs[1])
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("other items should survive a panic: %v", errs)
	}
}

func TestShardedPoolCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewShardedPool(2, func(ctx context.Context, item int) error { return nil })
	errs := pool.Run(ctx, []int{1, 2, 3}, func(int) string { return "" })

	for i, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("item %d: expected context.Canceled, got %v", i, err)
		}
	}
}

func TestShardedPoolEmptyInput(t *testing.T) {
	t.Parallel()
	pool := NewShardedPool(2, func(ctx context.Context, item int) error { return nil })
	if errs := pool.Run(context.Background(), nil, func(int) string { return "" }); errs != nil {
		t.Errorf("expected nil for empty input, got %v", errs)
	}
}

func TestShardIndexStable(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"jane cole", "bob roy", "x"} {
		first := shardIndex(key, 0, 8)
		for i := 0; i < 10; i++ {
			if got := shardIndex(key, i, 8); got != first {
				t.Fatalf("shardIndex(%q) not stable: %d vs %d", key, got, first)
			}
		}
	}
	if got := shardIndex("anything", 5, 1); got != 0 {
		t.Errorf("single bucket must always shard to 0, got %d", got)
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()
	items := []int{1, 2, 3, 4, 5}

	batches := Batch(items, 2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if fmt.Sprint(batches) != "[[1 2] [3 4] [5]]" {
		t.Errorf("unexpected batches: %v", batches)
	}

	if got := Batch([]int{}, 2); got != nil {
		t.Errorf("empty input should produce no batches, got %v", got)
	}
}
