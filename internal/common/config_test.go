package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 10, cfg.Categorization.BatchSize)
	assert.Equal(t, 5, cfg.Categorization.ContextSize)
	assert.True(t, cfg.Categorization.UseHistoricalContext)
	assert.False(t, cfg.Categorization.Recategorize)

	assert.Equal(t, 90, cfg.Historical.LookbackDays)
	assert.Equal(t, 0.6, cfg.Historical.FuzzyThreshold)
	assert.Equal(t, 0.10, cfg.Historical.AmountTolerance)
	assert.Equal(t, 2.0, cfg.Historical.ManualOverrideWeight)

	assert.Equal(t, 0.6, cfg.Confidence.AIWeight)
	assert.Equal(t, 0.4, cfg.Confidence.HistoricalWeight)
	assert.Equal(t, 15.0, cfg.Confidence.ConsensusBonus)
	assert.Equal(t, 15.0, cfg.Confidence.ConflictPenalty)
	assert.Equal(t, 2, cfg.Confidence.MinMatches)

	assert.Equal(t, 5, cfg.Normalization.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Normalization.GetBackoffBase())
	assert.Equal(t, 32*time.Second, cfg.Normalization.GetBackoffCap())

	assert.Contains(t, cfg.Currencies.Supported, "GBP")
	require.NoError(t, cfg.Validate())
}

func TestConfig_ValidateWeights(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Confidence.AIWeight = 0.7
	cfg.Confidence.HistoricalWeight = 0.4
	assert.Error(t, cfg.Validate())

	cfg.Confidence.AIWeight = 0.6
	cfg.Confidence.HistoricalWeight = 0.4
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ValidateBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Confidence.ConsensusBonus = 99
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Historical.FuzzyThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Categorization.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Currencies.Supported = nil
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledgerflow.toml")
	content := `
environment = "production"

[categorization]
batch_size = 25

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("LEDGERFLOW_BATCH_SIZE", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Environment wins over the file.
	assert.Equal(t, 7, cfg.Categorization.BatchSize)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
}

type fakeKV struct {
	values map[string]string
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", os.ErrNotExist
}

func (f *fakeKV) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func TestResolveAPIKey_Priority(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{values: map[string]string{"gemini_api_key": "from-store"}}

	t.Setenv("LEDGERFLOW_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "from-env")
	key, err := ResolveAPIKey(ctx, kv, "gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv("GEMINI_API_KEY", "")
	key, err = ResolveAPIKey(ctx, kv, "gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-store", key)

	key, err = ResolveAPIKey(ctx, &fakeKV{values: map[string]string{}}, "gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	_, err = ResolveAPIKey(ctx, &fakeKV{values: map[string]string{}}, "gemini_api_key", "")
	assert.Error(t, err)
}
