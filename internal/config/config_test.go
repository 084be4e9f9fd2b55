package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(parse(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "flashcards.db", cfg.Store.Path)
	assert.Equal(t, "flashcards", cfg.Store.Key)
	assert.Equal(t, 10*time.Minute, cfg.OAuth.CodeTTL)
	assert.Equal(t, 720*time.Hour, cfg.OAuth.TokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	yml := "api_key: from-file\nhttp:\n  addr: \":9000\"\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("FLASHCARD_API_KEY", "from-env")
	t.Setenv("FLASHCARD_STORE__BACKEND", "memory")
	t.Setenv("FLASHCARD_OAUTH__TOKEN_TTL", "1h")

	cfg, err := Load(parse(t, "--config", path, "--log.level", "warn"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, time.Hour, cfg.OAuth.TokenTTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FLASHCARD_API_KEY=dotenv-key\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("FLASHCARD_API_KEY") })

	cfg, err := Load(parse(t))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.APIKey)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("redis requires a url", func(t *testing.T) {
		_, err := Load(parse(t, "--store.backend", "redis"))
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Load(parse(t, "--store.backend", "mongo"))
		assert.Error(t, err)
	})

	t.Run("file backend requires a path", func(t *testing.T) {
		_, err := Load(parse(t, "--store.backend", "file", "--store.path", ""))
		assert.Error(t, err)
	})

	t.Run("redis with url", func(t *testing.T) {
		cfg, err := Load(parse(t, "--store.backend", "redis", "--store.redis_url", "redis://localhost:6379/0"))
		require.NoError(t, err)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
	})

	t.Run("zero ttl", func(t *testing.T) {
		_, err := Load(parse(t, "--oauth.code_ttl", "0s"))
		assert.Error(t, err)
	})
}
