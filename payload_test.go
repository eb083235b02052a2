package graphfold_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfold/graphfold"
)

func TestLoadPayloadValidJSON(t *testing.T) {
	data := []byte(`{
		"batch_id": "batch-7",
		"entities": [
			{"type": "Person", "name": "Alice Johnson", "external_id": "EMP-001",
			 "properties": {"email": "alice@nordwind.io"}}
		],
		"relationships": [
			{"type": "WORKS_FOR", "source_id": "EMP-001", "target_id": "ORG-001"}
		]
	}`)

	payload, err := graphfold.LoadPayload(data)
	require.NoError(t, err)
	assert.Equal(t, "batch-7", payload.BatchID)
	require.Len(t, payload.Entities, 1)
	assert.Equal(t, "Person", payload.Entities[0].Type)
	assert.Equal(t, "alice@nordwind.io", payload.Entities[0].Properties.String("email"))
	require.Len(t, payload.Relationships, 1)
	assert.Equal(t, "WORKS_FOR", payload.Relationships[0].Type)
}

// Extraction output straight from a model is often slightly broken JSON.
// The repair pass mends single quotes, unquoted keys and trailing commas
// before decoding.
func TestLoadPayloadRepairsDamagedJSON(t *testing.T) {
	data := []byte(`{
		'batch_id': 'batch-8',
		entities: [
			{'type': 'Person', 'name': 'Marcus Webb', 'properties': {'email': 'marcus@nordwind.io'},},
		],
	}`)

	payload, err := graphfold.LoadPayload(data)
	require.NoError(t, err)
	assert.Equal(t, "batch-8", payload.BatchID)
	require.Len(t, payload.Entities, 1)
	assert.Equal(t, "Marcus Webb", payload.Entities[0].Name)
	assert.Equal(t, "marcus@nordwind.io", payload.Entities[0].Properties.String("email"))
}

func TestLoadPayloadEmpty(t *testing.T) {
	_, err := graphfold.LoadPayload([]byte("   \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadPayloadUnresolvableInput(t *testing.T) {
	_, err := graphfold.LoadPayload([]byte("not a payload at all"))
	require.Error(t, err)
}

func TestLoadPayloadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extraction.json")
	content := `{"batch_id": "batch-9", "entities": [{"type": "Note", "name": "Standup summary"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	payload, err := graphfold.LoadPayloadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "batch-9", payload.BatchID)
	require.Len(t, payload.Entities, 1)
	assert.Equal(t, "Standup summary", payload.Entities[0].Name)
}

func TestLoadPayloadFileMissing(t *testing.T) {
	_, err := graphfold.LoadPayloadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read extraction payload")
}
