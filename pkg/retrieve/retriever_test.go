package retrieve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/graphfold/graphfold/pkg/driver"
	"github.com/graphfold/graphfold/pkg/match"
	"github.com/graphfold/graphfold/pkg/types"
)

// stubEmbedder returns one fixed vector for every input.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vector) }
func (s *stubEmbedder) Close() error    { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedNode(t *testing.T, store *driver.MemoryStore, label, name string, props types.Properties) string {
	t.Helper()
	if props == nil {
		props = types.Properties{}
	}
	props["name"] = name
	id, err := store.UpsertNode(context.Background(), label, match.NormalizeKey(name), props)
	if err != nil {
		t.Fatalf("seed %s %q: %v", label, name, err)
	}
	return id
}

func TestCandidatesExactName(t *testing.T) {
	store := driver.NewMemoryStore()
	seedNode(t, store, "Person", "Jane Cole", nil)
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r := NewRetriever(store, emb, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Person", Name: "JANE COLE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if got := result.Candidates[0].Method; got != types.RetrievalExactName {
		t.Errorf("expected method %q, got %q", types.RetrievalExactName, got)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not run when an earlier strategy hits, got %d calls", emb.calls)
	}
	if result.Embedding != nil {
		t.Errorf("expected no query embedding, got %v", result.Embedding)
	}
}

func TestCandidatesStopAtFirstNonEmptyStrategy(t *testing.T) {
	store := driver.NewMemoryStore()
	seedNode(t, store, "Asset", "Acme Drill", nil)
	seedNode(t, store, "Asset", "Acme Drill Press", nil)
	r := NewRetriever(store, nil, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Asset", Name: "Acme Drill"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The fuzzy strategy would also match "Acme Drill Press", but the exact
	// hit stops the ladder first.
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if got := result.Candidates[0].GraphNode.Name(); got != "Acme Drill" {
		t.Errorf("expected exact hit, got %q", got)
	}
}

func TestCandidatesFuzzyName(t *testing.T) {
	store := driver.NewMemoryStore()
	seedNode(t, store, "Person", "Jonathan Smith", nil)
	r := NewRetriever(store, nil, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Person", Name: "Jonathan Smyth"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if got := result.Candidates[0].Method; got != types.RetrievalFuzzyName {
		t.Errorf("expected method %q, got %q", types.RetrievalFuzzyName, got)
	}
}

func TestCandidatesShortNameSkipsFuzzy(t *testing.T) {
	store := driver.NewMemoryStore()
	seedNode(t, store, "Person", "Johnson Barnes", nil)
	r := NewRetriever(store, nil, nil, Config{}, discardLogger())

	// "John" is within the seeded name but too short for the fuzzy strategy.
	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Person", Name: "John"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
}

func TestCandidatesPropertyExact(t *testing.T) {
	store := driver.NewMemoryStore()
	seedNode(t, store, "Person", "Janet Cole", types.Properties{
		"email": "janet@example.com",
		"phone": "+1 (303) 555-0101",
	})
	r := NewRetriever(store, nil, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{
		Type: "Person",
		Name: "J. Cole",
		Properties: types.Properties{
			"email": "JANET@example.com",
			"phone": "+1 (303) 555-0101",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Both key properties hit the same node; it must appear once.
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if got := result.Candidates[0].Method; got != types.RetrievalPropertyExact {
		t.Errorf("expected method %q, got %q", types.RetrievalPropertyExact, got)
	}
}

func TestCandidatesVector(t *testing.T) {
	store := driver.NewMemoryStore()
	seedNode(t, store, "Person", "Ana Petrova", types.Properties{"embedding": []float32{1, 0, 0}})
	seedNode(t, store, "Person", "Boris Ivanov", types.Properties{"embedding": []float32{0, 1, 0}})
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r := NewRetriever(store, emb, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Person", Name: "Maria Gonzalez"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate above the threshold, got %d", len(result.Candidates))
	}
	c := result.Candidates[0]
	if c.Method != types.RetrievalVector {
		t.Errorf("expected method %q, got %q", types.RetrievalVector, c.Method)
	}
	if got := c.GraphNode.Name(); got != "Ana Petrova" {
		t.Errorf("expected nearest neighbour, got %q", got)
	}
	if c.Similarity < 0.99 {
		t.Errorf("expected similarity near 1.0, got %f", c.Similarity)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected query embedding on result, got %v", result.Embedding)
	}
}

func TestCandidatesNoEmbedderSkipsVector(t *testing.T) {
	store := driver.NewMemoryStore()
	seedNode(t, store, "Person", "Ana Petrova", types.Properties{"embedding": []float32{1, 0, 0}})
	r := NewRetriever(store, nil, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Person", Name: "Maria Gonzalez"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
}

func TestCandidatesUnknownTypeSkipsVector(t *testing.T) {
	store := driver.NewMemoryStore()
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r := NewRetriever(store, emb, nil, Config{}, discardLogger())

	// The fallback matcher builds no canonical text, so even with an
	// embedder configured the vector strategy stays off.
	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Widget", Name: "Flux Capacitor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called for types without canonical text, got %d calls", emb.calls)
	}
}

func TestCandidatesEmbedderFailureIsNonFatal(t *testing.T) {
	store := driver.NewMemoryStore()
	emb := &stubEmbedder{err: errors.New("model unavailable")}
	r := NewRetriever(store, emb, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Person", Name: "Maria Gonzalez"})
	if err != nil {
		t.Fatalf("embedder failure should not abort retrieval: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
}

func TestCandidatesStoreFailureIsNonFatal(t *testing.T) {
	store := driver.NewMemoryStore()
	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	r := NewRetriever(store, nil, nil, Config{}, discardLogger())

	result, err := r.Candidates(context.Background(), &types.IncomingEntity{Type: "Person", Name: "Maria Gonzalez"})
	if err != nil {
		t.Fatalf("store failure should degrade to an empty result: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
}

func TestCandidatesCancelledContext(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewRetriever(store, nil, nil, Config{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Candidates(ctx, &types.IncomingEntity{Type: "Person", Name: "Maria Gonzalez"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, c.Limit)
	}
	if c.MinFuzzyNameLen != DefaultMinFuzzyNameLen {
		t.Errorf("expected min fuzzy length %d, got %d", DefaultMinFuzzyNameLen, c.MinFuzzyNameLen)
	}

	c = Config{Limit: 3, MinFuzzyNameLen: 8}.withDefaults()
	if c.Limit != 3 || c.MinFuzzyNameLen != 8 {
		t.Errorf("explicit values must be kept, got %+v", c)
	}
}
