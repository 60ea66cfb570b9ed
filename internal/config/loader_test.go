package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Memory.TopK)
	assert.Equal(t, 0.4, cfg.Memory.TagThreshold)
	assert.Equal(t, 5, cfg.Memory.SummarySentences)
	assert.Equal(t, 50, cfg.Memory.SummaryMinWords)
	assert.Equal(t, 3, cfg.Memory.ShortTermN)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.NotContains(t, cfg.Memory.Dir, "~")
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9191
  shutdown_timeout: 3s
memory:
  dir: /var/lib/recall
  top_k: 8
embeddings:
  provider: hash
  dimension: 64
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "/var/lib/recall", cfg.Memory.Dir)
	assert.Equal(t, 8, cfg.Memory.TopK)
	assert.Equal(t, 0.4, cfg.Memory.TagThreshold, "unset keys keep defaults")
	assert.Equal(t, "hash", cfg.Embeddings.Provider)
	assert.Equal(t, 64, cfg.Embeddings.Dimension)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "memory:\n  top_k: 8\n", 0o600)
	t.Setenv("RECALL_MEMORY_TOP_K", "2")
	t.Setenv("RECALL_EMBEDDINGS_BASE_URL", "http://tei:8080")
	t.Setenv("RECALL_EMBEDDINGS_API_KEY", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Memory.TopK)
	assert.Equal(t, "http://tei:8080", cfg.Embeddings.BaseURL)
	assert.Equal(t, "s3cret", cfg.Embeddings.APIKey.Value())
	assert.Equal(t, "[REDACTED]", cfg.Embeddings.APIKey.String())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		perm    os.FileMode
		wantErr string
	}{
		{"world writable", "memory:\n  top_k: 1\n", 0o666, "world-writable"},
		{"bad yaml", "memory: [", 0o600, "parsing"},
		{"invalid value", "memory:\n  tag_threshold: 1.5\n", 0o600, "tag_threshold"},
		{"unknown provider", "embeddings:\n  provider: openai\n", 0o600, "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content, tt.perm)
			require.NoError(t, os.Chmod(path, tt.perm))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "memory.top_k", envKey("RECALL_MEMORY_TOP_K"))
	assert.Equal(t, "server.port", envKey("RECALL_SERVER_PORT"))
	assert.Equal(t, "embeddings.base_url", envKey("RECALL_EMBEDDINGS_BASE_URL"))
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
