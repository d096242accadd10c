package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "actions", cfg.CatalogDir)
	assert.Equal(t, "rules", cfg.RulesDir)
	assert.Equal(t, 20, cfg.Planner.MaxDepth)
	assert.Equal(t, 3, cfg.Planner.MaxAttempts)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.False(t, cfg.HasLLM())
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
catalog_dir: /srv/actions
planner:
  max_depth: 50
llm:
  model: gemini-2.5-pro
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/actions", cfg.CatalogDir)
	assert.Equal(t, 50, cfg.Planner.MaxDepth)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	// Untouched keys keep their defaults.
	assert.Equal(t, "rules", cfg.RulesDir)
	assert.Equal(t, "120s", cfg.LLM.Timeout)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog_dir: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY sets the LLM key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "env-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "env-key", cfg.LLM.APIKey)
		assert.True(t, cfg.HasLLM())
	})

	t.Run("PLANNERD_DB overrides the store path", func(t *testing.T) {
		t.Setenv("PLANNERD_DB", "/tmp/other.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/other.db", cfg.StorePath)
	})

	t.Run("empty env leaves config untouched", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")

		cfg := DefaultConfig()
		cfg.LLM.APIKey = "from-file"
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.LLM.APIKey)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PLANNERD_DB", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.CatalogDir = "/srv/actions"
	cfg.Planner.MaxDepth = 42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/actions", loaded.CatalogDir)
	assert.Equal(t, 42, loaded.Planner.MaxDepth)
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetPlanTimeout())

	cfg.LLM.Timeout = "not-a-duration"
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())

	cfg.Planner.PlanTimeout = "5s"
	assert.Equal(t, 5*time.Second, cfg.GetPlanTimeout())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Planner.MaxDepth = -1
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.UI.Theme = "sepia"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme")
}
