package utils

import (
	"container/heap"
	"math"
	"sort"
)

// CosineSimilarity calculates the cosine similarity between two float32
// vectors. Returns 0 if the vectors have different lengths, are empty, or
// either has zero magnitude. The result is in the range [-1, 1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Magnitude calculates the Euclidean magnitude (L2 norm) of a vector.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales a vector to unit length. Returns nil if the input is
// empty or has zero magnitude.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	mag := Magnitude(v)
	if mag == 0 {
		return nil
	}
	result := make([]float32, len(v))
	for i, x := range v {
		result[i] = float32(float64(x) / mag)
	}
	return result
}

// ScoredItem pairs an item with a score for top-K selection.
type ScoredItem[T any] struct {
	Item  T
	Score float64
}

// minHeap keeps the smallest score at the root so the weakest of the current
// top K is cheap to evict.
type minHeap[T any] []ScoredItem[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) {
	*h = append(*h, x.(ScoredItem[T]))
}

func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// TopKByScore returns the K items with the highest scores, sorted descending.
// O(n log k), which beats sorting when k is much smaller than n.
func TopKByScore[T any](items []ScoredItem[T], k int) []ScoredItem[T] {
	if k <= 0 || len(items) == 0 {
		return nil
	}

	if k >= len(items) {
		result := make([]ScoredItem[T], len(items))
		copy(result, items)
		sort.SliceStable(result, func(i, j int) bool { return result[i].Score > result[j].Score })
		return result
	}

	h := make(minHeap[T], 0, k)
	heap.Init(&h)
	for _, item := range items {
		if h.Len() < k {
			heap.Push(&h, item)
		} else if item.Score > h[0].Score {
			heap.Pop(&h)
			heap.Push(&h, item)
		}
	}

	result := make([]ScoredItem[T], h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredItem[T])
	}
	return result
}
