package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, "sid-1", cfg.LLMModel)
	assert.Equal(t, 3072, cfg.EmbeddingDimensions)
	assert.Equal(t, 1000, cfg.EfSearch)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, 10, cfg.EvalConcurrency)
	assert.Equal(t, 5, cfg.OutputConcurrency)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_TURNS", "4")
	t.Setenv("SID_URL", "http://llm.local/v1")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("TOOL_TIMEOUT", "5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxTurns)
	assert.Equal(t, "http://llm.local/v1", cfg.LLMBaseURL)
	assert.Equal(t, "g-key", cfg.GoogleApiKey)
	assert.Equal(t, 5*time.Second, cfg.ToolTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("EVAL_CONCURRENCY: 3\nPORT: \"9090\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.EvalConcurrency)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EVAL_CONCURRENCY", "0")

	_, err := Load("")
	assert.ErrorContains(t, err, "EVAL_CONCURRENCY")
}
