package utils

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{-1, 0, 0},
			expected: -1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 1, 0},
			expected: 0.0,
		},
		{
			name:     "scaled vectors keep direction",
			a:        []float32{1, 2, 3},
			b:        []float32{2, 4, 6},
			expected: 1.0,
		},
		{
			name:     "different lengths",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2},
			expected: 0.0,
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "zero magnitude",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "nil vectors",
			a:        nil,
			b:        nil,
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 1e-6 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, expected %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestMagnitude(t *testing.T) {
	t.Parallel()
	if got := Magnitude([]float32{3, 4}); math.Abs(got-5) > 1e-6 {
		t.Errorf("Magnitude([3 4]) = %v, expected 5", got)
	}
	if got := Magnitude(nil); got != 0 {
		t.Errorf("Magnitude(nil) = %v, expected 0", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	normalized := Normalize([]float32{3, 4})
	if normalized == nil {
		t.Fatal("Normalize returned nil for a non-zero vector")
	}
	if got := Magnitude(normalized); math.Abs(got-1) > 1e-6 {
		t.Errorf("Magnitude(Normalize([3 4])) = %v, expected 1", got)
	}
	if got := CosineSimilarity(normalized, []float32{3, 4}); math.Abs(got-1) > 1e-6 {
		t.Errorf("Normalize changed direction: similarity %v", got)
	}

	if Normalize(nil) != nil {
		t.Error("Normalize(nil) should return nil")
	}
	if Normalize([]float32{0, 0}) != nil {
		t.Error("Normalize of zero vector should return nil")
	}
}

func TestTopKByScore(t *testing.T) {
	t.Parallel()
	items := []ScoredItem[string]{
		{Item: "c", Score: 0.3},
		{Item: "a", Score: 0.9},
		{Item: "d", Score: 0.1},
		{Item: "b", Score: 0.7},
	}

	top := TopKByScore(items, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 items, got %d", len(top))
	}
	if top[0].Item != "a" || top[1].Item != "b" {
		t.Errorf("expected [a b], got [%s %s]", top[0].Item, top[1].Item)
	}

	all := TopKByScore(items, 10)
	if len(all) != len(items) {
		t.Fatalf("expected all %d items, got %d", len(items), len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Score > all[i-1].Score {
			t.Errorf("result not sorted descending at %d", i)
		}
	}

	if TopKByScore(items, 0) != nil {
		t.Error("k=0 should return nil")
	}
	if TopKByScore[string](nil, 3) != nil {
		t.Error("empty input should return nil")
	}
}
