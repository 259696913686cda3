package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "stashpipe", cfg.Queue.Name)
	assert.Equal(t, 2*time.Minute, cfg.Queue.VisibilityTimeout.Std())
	assert.Equal(t, 1, cfg.Queue.MaxAttempts)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "stashpipe-content", cfg.Archive.Bucket)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: user:pass@tcp(localhost:3306)/stash
queue:
  maxAttempts: 3
  visibilityTimeout: 30s
openai:
  model: gpt-4o
`), 0o600))
	t.Setenv("STASHPIPE_CONFIG", path)

	cfg := Load()

	assert.Equal(t, "user:pass@tcp(localhost:3306)/stash", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Queue.VisibilityTimeout.Std())
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	// Untouched sections keep their defaults.
	assert.Equal(t, "stashpipe", cfg.Queue.Name)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  apiKey: from-file\n"), 0o600))
	t.Setenv("STASHPIPE_CONFIG", path)
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg := Load()

	assert.Equal(t, "from-env", cfg.OpenAI.APIKey)
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	t.Setenv("STASHPIPE_CONFIG", "/nonexistent/config.yaml")

	cfg := Load()

	assert.Equal(t, "stashpipe", cfg.Queue.Name)
}
