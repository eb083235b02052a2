package importer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfold/graphfold/pkg/driver"
	"github.com/graphfold/graphfold/pkg/types"
)

func newTestImporter(store driver.GraphStore) *Importer {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNaturalKey(t *testing.T) {
	tests := []struct {
		name   string
		entity types.IncomingEntity
		want   string
	}{
		{"external id wins", types.IncomingEntity{ExternalID: "EMP-001", Name: "John Smith"}, "emp-001"},
		{"name fallback", types.IncomingEntity{Name: "  John   Smith "}, "john smith"},
		{"blank external id ignored", types.IncomingEntity{ExternalID: "   ", Name: "Jane Cole"}, "jane cole"},
		{"nothing to key on", types.IncomingEntity{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalKey(&tt.entity))
		})
	}
}

func TestUpsertNodeMergesOnNaturalKey(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	imp := newTestImporter(store)

	first, err := imp.UpsertNode(ctx, "Person", "EMP-001", types.Properties{"name": "John Smith"})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := imp.UpsertNode(ctx, "Person", "emp-001", types.Properties{"email": "jsmith@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, first, second, "differently cased keys must hit the same node")

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.NodeCount)

	node, err := store.FindByNaturalKey(ctx, "Person", "emp-001")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "John Smith", node.Properties.String("name"))
	assert.Equal(t, "jsmith@acme.com", node.Properties.String("email"))
}

func TestUpsertNodeRejectsEmptyKey(t *testing.T) {
	imp := newTestImporter(driver.NewMemoryStore())

	_, err := imp.UpsertNode(context.Background(), "Person", "   ", types.Properties{"name": "Ghost"})
	require.ErrorIs(t, err, types.ErrMissingIdentity)
}

func TestFlattenProperties(t *testing.T) {
	hired := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	embedding := []float32{0.1, 0.2, 0.3}

	out := FlattenProperties(types.Properties{
		"name":    "John Smith",
		"age":     42,
		"active":  true,
		"score":   0.87,
		"hired":   hired,
		"address": types.Properties{"city": "Lisbon"},
		"extra":   map[string]any{"badge": "blue"},
		"tags":    []string{"staff", "it"},
		"mixed":   []any{1, "two"},
		"vector":  embedding,
		"nothing": nil,
	})

	assert.Equal(t, "John Smith", out["name"])
	assert.Equal(t, 42, out["age"])
	assert.Equal(t, true, out["active"])
	assert.Equal(t, 0.87, out["score"])
	assert.Equal(t, types.FormatTime(hired), out["hired"])
	assert.Equal(t, `{"city":"Lisbon"}`, out["address"])
	assert.Equal(t, `{"badge":"blue"}`, out["extra"])
	assert.Equal(t, `["staff","it"]`, out["tags"])
	assert.Equal(t, `[1,"two"]`, out["mixed"])
	assert.Equal(t, embedding, out["vector"], "embedding vectors pass through untouched")
	assert.Nil(t, out["nothing"])

	assert.NotNil(t, FlattenProperties(nil))
}

func TestRegistryAliases(t *testing.T) {
	reg := NewRegistry()
	reg.Register("node-1", "EMP-001", "John Smith")

	id, ok := reg.Lookup("emp-001")
	require.True(t, ok)
	assert.Equal(t, "node-1", id)

	id, ok = reg.Lookup("JOHN   SMITH")
	require.True(t, ok)
	assert.Equal(t, "node-1", id)

	// A contested alias stays with the node that claimed it first.
	reg.Register("node-2", "John Smith")
	id, _ = reg.Lookup("john smith")
	assert.Equal(t, "node-1", id)

	reg.Register("node-3", "", "   ")
	assert.Equal(t, 2, reg.Len())

	reg.Register("", "ghost")
	_, ok = reg.Lookup("ghost")
	assert.False(t, ok)
}

func TestRegisterEntity(t *testing.T) {
	entity := &types.IncomingEntity{Type: "Person", Name: "Jane Cole", ExternalID: "EMP-7"}
	reg := NewRegistry()
	reg.RegisterEntity(entity, NaturalKey(entity), "n9")

	for _, ref := range []string{"EMP-7", "jane cole", "Jane Cole", NaturalKey(entity)} {
		id, ok := reg.Lookup(ref)
		require.True(t, ok, "ref %q", ref)
		assert.Equal(t, "n9", id)
	}

	reg.RegisterEntity(nil, "", "n10")
	assert.Equal(t, 2, reg.Len())
}

func TestResolveEndpointPrefersRegistry(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	imp := newTestImporter(store)

	_, err := imp.UpsertNode(ctx, "Company", "acme", types.Properties{"name": "Acme"})
	require.NoError(t, err)

	reg := NewRegistry()
	reg.Register("batch-id", "Acme")

	id, err := imp.ResolveEndpoint(ctx, reg, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "batch-id", id)
}

func TestResolveEndpointByNaturalKey(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	imp := newTestImporter(store)

	want, err := imp.UpsertNode(ctx, "Company", "Acme-Corp", types.Properties{"name": "Acme Corporation"})
	require.NoError(t, err)

	id, err := imp.ResolveEndpoint(ctx, nil, "ACME-CORP")
	require.NoError(t, err)
	assert.Equal(t, want, id)
}

func TestResolveEndpointByExternalID(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	imp := newTestImporter(store)

	// Natural key derives from the name, so the external id is only
	// reachable through the property lookup.
	want, err := imp.UpsertNode(ctx, "Person", "john smith", types.Properties{
		"name":        "John Smith",
		"external_id": "E-42",
	})
	require.NoError(t, err)

	id, err := imp.ResolveEndpoint(ctx, nil, "e-42")
	require.NoError(t, err)
	assert.Equal(t, want, id)
}

func TestResolveEndpointByName(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	imp := newTestImporter(store)

	// Keyed by external id, so the name is only reachable through the
	// name lookup.
	want, err := imp.UpsertNode(ctx, "Company", "emp-9", types.Properties{"name": "Board of Directors"})
	require.NoError(t, err)

	id, err := imp.ResolveEndpoint(ctx, nil, "Board of Directors")
	require.NoError(t, err)
	assert.Equal(t, want, id)
}

func TestResolveEndpointMiss(t *testing.T) {
	imp := newTestImporter(driver.NewMemoryStore())

	_, err := imp.ResolveEndpoint(context.Background(), NewRegistry(), "Nobody Here")
	require.ErrorIs(t, err, ErrEndpointNotFound)

	_, err = imp.ResolveEndpoint(context.Background(), nil, "   ")
	require.ErrorIs(t, err, ErrEndpointNotFound)
}

func TestUpsertRelationshipIdempotent(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	imp := newTestImporter(store)

	person, err := imp.UpsertNode(ctx, "Person", "john smith", types.Properties{"name": "John Smith"})
	require.NoError(t, err)
	company, err := imp.UpsertNode(ctx, "Company", "acme", types.Properties{"name": "Acme"})
	require.NoError(t, err)

	require.NoError(t, imp.UpsertRelationship(ctx, person, "WORKS_FOR", company, types.Properties{"since": 2020}))
	require.NoError(t, imp.UpsertRelationship(ctx, person, "WORKS_FOR", company, types.Properties{"since": 2021}))

	rels := store.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, "WORKS_FOR", rels[0].Type)
	assert.Equal(t, person, rels[0].SourceID)
	assert.Equal(t, company, rels[0].TargetID)
}

func TestUpsertRelationshipRequiresType(t *testing.T) {
	imp := newTestImporter(driver.NewMemoryStore())

	err := imp.UpsertRelationship(context.Background(), "a", "   ", "b", nil)
	require.ErrorIs(t, err, types.ErrMissingRelationshipType)
}

func TestClearRemovesEverythingInChunks(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	imp := newTestImporter(store)

	ids := make([]string, 0, 5)
	for _, name := range []string{"Ana", "Boris", "Carla", "Dmitri", "Elena"} {
		id, err := imp.UpsertNode(ctx, "Person", name, types.Properties{"name": name})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, imp.UpsertRelationship(ctx, ids[0], "KNOWS", ids[1], nil))

	deleted, err := imp.Clear(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.NodeCount)
	assert.EqualValues(t, 0, stats.RelationshipCount)

	deleted, err = imp.Clear(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestClearCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imp := newTestImporter(driver.NewMemoryStore())
	deleted, err := imp.Clear(ctx, 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, deleted)
}
