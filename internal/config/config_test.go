package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/storage/sqlite"
	"github.com/scrypster/companion/pkg/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "COMPANION_") {
			t.Setenv(key, "")
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "Default host must be 127.0.0.1 for security")
	assert.Equal(t, "127.0.0.1:6363", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, filepath.Join("data", "companion.db"), cfg.Storage.SQLitePath())
	assert.Equal(t, filepath.Join("data", "backups"), cfg.Backup.Path)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, types.SortLatest, cfg.User.DefaultSort)
	assert.Equal(t, 24, cfg.Backup.Retention.Hourly)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPANION_HOST", "0.0.0.0")
	t.Setenv("COMPANION_PORT", "9000")
	t.Setenv("COMPANION_PORT_IGNORED", "x")
	t.Setenv("COMPANION_BACKUP_ENABLED", "YES")
	t.Setenv("COMPANION_AI_TIMEOUT", "5s")
	t.Setenv("COMPANION_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("COMPANION_DEFAULT_SORT", "ALPHABETICAL")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, types.SortAlphabetical, cfg.User.DefaultSort)
}

func TestLoadConfig_InvalidIntFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPANION_PORT", "not-a-port")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 6363, cfg.Server.Port)
}

func TestLoadConfig_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "companion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
storage:
  data_path: /var/lib/companion
ai:
  provider: ollama
  model: llama3
  cache_ttl: 1h
backup:
  retention:
    hourly: 6
`), 0o600))
	t.Setenv("COMPANION_AI_MODEL", "qwen2.5:7b")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "qwen2.5:7b", cfg.AI.Model, "env wins over file")
	assert.Equal(t, time.Hour, cfg.AI.CacheTTL)
	assert.Equal(t, 6, cfg.Backup.Retention.Hourly)
	assert.Equal(t, 7, cfg.Backup.Retention.Daily, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/companion/backups", cfg.Backup.Path)

	pc := cfg.AI.ProviderConfig()
	assert.Equal(t, "ollama", pc.Provider)
	assert.Equal(t, "qwen2.5:7b", pc.Model)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	clearEnv(t)
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o600))
	_, err = config.LoadConfig(bad)
	assert.Error(t, err)

	t.Setenv("COMPANION_CONFIG_FILE", bad)
	_, err = config.LoadConfig("")
	assert.Error(t, err, "COMPANION_CONFIG_FILE is used when no path is given")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"default", func(*config.Config) {}, ""},
		{"unknown engine", func(c *config.Config) { c.Storage.Engine = "mongo" }, `unknown storage engine "mongo"`},
		{"postgres without dsn", func(c *config.Config) { c.Storage.Engine = "postgres" }, "requires COMPANION_POSTGRES_DSN"},
		{"postgres with dsn", func(c *config.Config) {
			c.Storage.Engine = "postgres"
			c.Storage.PostgresDSN = "postgres://localhost/companion"
		}, ""},
		{"unknown provider", func(c *config.Config) { c.AI.Provider = "mystery" }, `unknown AI provider "mystery"`},
		{"unknown source mode", func(c *config.Config) { c.AI.SourceMode = "vibes" }, "unknown source mode"},
		{"production without token", func(c *config.Config) { c.Security.Mode = config.ModeProduction }, "requires COMPANION_API_TOKEN"},
		{"production with token", func(c *config.Config) {
			c.Security.Mode = config.ModeProduction
			c.Security.APIToken = "secret"
		}, ""},
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }, "port must be between"},
		{"no workers", func(c *config.Config) { c.Enrichment.Workers = 0 }, "workers must be >= 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestUserSettings_RoundTrip(t *testing.T) {
	clearEnv(t)
	store, err := sqlite.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	t.Setenv("COMPANION_USER_NAME", "from-env")
	cfg, err := config.LoadConfigFromDB(ctx, store, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.User.DisplayName, "env is the fallback without a stored value")

	cfg.User.DisplayName = "Robin"
	cfg.User.DefaultSort = types.SortMostMemories
	require.NoError(t, cfg.SaveConfig(ctx, store))

	loaded, err := config.LoadConfigFromDB(ctx, store, "")
	require.NoError(t, err)
	assert.Equal(t, "Robin", loaded.User.DisplayName, "stored value wins over env")
	assert.Equal(t, types.SortMostMemories, loaded.User.DefaultSort)
}

func TestUserSettings_NilStore(t *testing.T) {
	_, err := config.LoadConfigFromDB(context.Background(), nil, "")
	assert.Error(t, err)
	assert.Error(t, config.Default().SaveConfig(context.Background(), nil))
}
