package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears global viper state and blanks every environment
// variable Load consults, so ambient credentials cannot leak in.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, key := range []string{
		"NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD", "OPENAI_API_KEY",
		"GRAPHFOLD_DB_PROVIDER", "GRAPHFOLD_REVIEW_PATH", "GRAPHFOLD_TAXONOMY_PATH",
		"GRAPHFOLD_TELEMETRY_DIR", "GRAPHFOLD_HIGH_THRESHOLD", "GRAPHFOLD_LOW_THRESHOLD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "neo4j", cfg.Database.Provider)
	assert.Equal(t, "bolt://localhost:7687", cfg.Database.URI)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.True(t, cfg.Embedding.Cache.Enabled)
	assert.Equal(t, 720, cfg.Embedding.Cache.TTLHours)
	assert.False(t, cfg.Tiebreak.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Tiebreak.Model)
	assert.Equal(t, 20, cfg.Tiebreak.CallTimeout)
	assert.InDelta(t, 0.6, cfg.Tiebreak.Breaker.TripRatio, 1e-9)
	assert.InDelta(t, 0.90, cfg.Decision.HighThreshold, 1e-9)
	assert.InDelta(t, 0.50, cfg.Decision.LowThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Retrieval.Limit)
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 1000, cfg.Import.ClearChunkSize)
	assert.Equal(t, "data/review_queue.json", cfg.Review.Path)
	assert.Empty(t, cfg.Taxonomy.Path)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 100, cfg.Telemetry.BatchSize)
	assert.False(t, cfg.Alert.Enabled)
	assert.Equal(t, 587, cfg.Alert.SMTPPort)
}

func TestLoadEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_USER", "ops")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GRAPHFOLD_DB_PROVIDER", "memory")
	t.Setenv("GRAPHFOLD_REVIEW_PATH", "/var/lib/graphfold/queue.json")
	t.Setenv("GRAPHFOLD_HIGH_THRESHOLD", "0.95")
	t.Setenv("GRAPHFOLD_LOW_THRESHOLD", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Database.URI)
	assert.Equal(t, "ops", cfg.Database.Username)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.Tiebreak.APIKey)
	assert.Equal(t, "memory", cfg.Database.Provider)
	assert.Equal(t, "/var/lib/graphfold/queue.json", cfg.Review.Path)
	assert.InDelta(t, 0.95, cfg.Decision.HighThreshold, 1e-9)
	assert.InDelta(t, 0.50, cfg.Decision.LowThreshold, 1e-9,
		"an unparseable override keeps the default")
}

func TestLoadFromReader(t *testing.T) {
	resetViper(t)
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(`
database:
  provider: memory
tiebreak:
  enabled: true
  api_key: file-key
decision:
  high_threshold: 0.88
review:
  path: /tmp/queue.json
`)))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Provider)
	assert.True(t, cfg.Tiebreak.Enabled)
	assert.Equal(t, "file-key", cfg.Tiebreak.APIKey)
	assert.InDelta(t, 0.88, cfg.Decision.HighThreshold, 1e-9)
	assert.Equal(t, "/tmp/queue.json", cfg.Review.Path)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep their defaults")
}

func TestFileKeyBeatsEnvKey(t *testing.T) {
	resetViper(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(`
tiebreak:
  api_key: sk-file
`)))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.Tiebreak.APIKey)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey,
		"the env key still fills slots the file left empty")
}
