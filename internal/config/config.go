// Package config loads Memory Companion configuration. Values come from
// built-in defaults, then an optional YAML file, then environment variables
// with the COMPANION_ prefix; later sources win.
//
// User settings (display name, default person sort) are also persisted in
// the settings table. LoadConfigFromDB lets stored values override the
// environment, and SaveConfig writes them back.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/companion/internal/backup"
	"github.com/scrypster/companion/internal/llm"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// Security modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Source selection modes for chat answers.
const (
	SourceModeKeyword  = "keyword"
	SourceModeSemantic = "semantic"
)

// Settings table keys.
const (
	settingDisplayName = "user_name"
	settingDefaultSort = "default_person_sort"
)

// Config holds all configuration of the service and the CLI.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	AI         AIConfig         `yaml:"ai"`
	Security   SecurityConfig   `yaml:"security"`
	Backup     BackupConfig     `yaml:"backup"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Log        LogConfig        `yaml:"log"`
	User       UserConfig       `yaml:"user"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 6363
	Host            string        `yaml:"host"`             // default: 127.0.0.1
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 120s, covers slow AI calls
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	AllowedOrigins  []string      `yaml:"allowed_origins"`  // CORS and WebSocket origins
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite or postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // default: ./data
	PostgresDSN string `yaml:"postgres_dsn"` // required for postgres
}

// SQLitePath returns the SQLite database file inside DataPath.
func (s StorageConfig) SQLitePath() string {
	return filepath.Join(s.DataPath, "companion.db")
}

// AIConfig configures the AI provider.
type AIConfig struct {
	Provider       string        `yaml:"provider"` // gemini, openai, anthropic, ollama (default: gemini)
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`     // default: 60s
	CacheSize      int64         `yaml:"cache_size"`  // analysis cache entries (default: 1000)
	CacheTTL       time.Duration `yaml:"cache_ttl"`   // default: 24h
	SourceMode     string        `yaml:"source_mode"` // keyword or semantic (default: keyword)
}

// ProviderConfig converts to the llm factory configuration.
func (a AIConfig) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:       a.Provider,
		APIKey:         a.APIKey,
		Model:          a.Model,
		EmbeddingModel: a.EmbeddingModel,
		BaseURL:        a.BaseURL,
		Timeout:        a.Timeout,
	}
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	Mode     string `yaml:"mode"` // development or production (default: development)
	APIToken string `yaml:"api_token"`
}

// IsProduction reports whether production mode is active.
func (s SecurityConfig) IsProduction() bool {
	return s.Mode == ModeProduction
}

// BackupConfig contains backup configuration.
type BackupConfig struct {
	Enabled   bool                   `yaml:"enabled"`  // default: false
	Interval  time.Duration          `yaml:"interval"` // default: 24h
	Path      string                 `yaml:"path"`     // default: <data_path>/backups
	Verify    bool                   `yaml:"verify"`   // default: true
	Retention backup.RetentionPolicy `yaml:"retention"`
}

// EnrichmentConfig sizes the background enricher.
type EnrichmentConfig struct {
	Workers    int `yaml:"workers"`     // default: 2
	QueueSize  int `yaml:"queue_size"`  // default: 1000
	MaxRetries int `yaml:"max_retries"` // default: 3
}

// SessionsConfig controls capture and conversation sessions.
type SessionsConfig struct {
	TTL time.Duration `yaml:"ttl"` // idle lifetime (default: 30m)
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
}

// UserConfig contains user settings that persist across restarts.
type UserConfig struct {
	// DisplayName greets the user in the UI.
	// Env var: COMPANION_USER_NAME. Database key: user_name.
	DisplayName string `yaml:"display_name" json:"display_name"`

	// DefaultSort is the initial person list order.
	// Env var: COMPANION_DEFAULT_SORT. Database key: default_person_sort.
	DefaultSort types.PersonSort `yaml:"default_sort" json:"default_sort"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            6363,
			Host:            "127.0.0.1",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Engine: "sqlite", DataPath: "./data"},
		AI: AIConfig{
			Provider:   llm.ProviderGemini,
			Timeout:    60 * time.Second,
			CacheSize:  1000,
			CacheTTL:   24 * time.Hour,
			SourceMode: SourceModeKeyword,
		},
		Security: SecurityConfig{Mode: ModeDevelopment},
		Backup: BackupConfig{
			Interval:  24 * time.Hour,
			Verify:    true,
			Retention: backup.DefaultRetention(),
		},
		Enrichment: EnrichmentConfig{Workers: 2, QueueSize: 1000, MaxRetries: 3},
		Sessions:   SessionsConfig{TTL: 30 * time.Minute},
		Log:        LogConfig{Level: "info"},
		User:       UserConfig{DefaultSort: types.SortLatest},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (or COMPANION_CONFIG_FILE when path is empty) and the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("COMPANION_CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = filepath.Join(cfg.Storage.DataPath, "backups")
	}
	cfg.User.DefaultSort = types.ParsePersonSort(string(cfg.User.DefaultSort))
	return cfg, nil
}

// LoadConfigFromDB loads the configuration like LoadConfig and lets user
// settings stored in the settings table override it.
func LoadConfigFromDB(ctx context.Context, store storage.SettingsStore, path string) (*Config, error) {
	if store == nil {
		return nil, errors.New("config: settings store is required")
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadUserSettings(ctx, store); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUserSettings overrides the user settings with stored values. Missing
// keys keep the current values.
func (c *Config) LoadUserSettings(ctx context.Context, store storage.SettingsStore) error {
	name, err := lookupSetting(ctx, store, settingDisplayName)
	if err != nil {
		return err
	}
	if name != "" {
		c.User.DisplayName = name
	}

	sort, err := lookupSetting(ctx, store, settingDefaultSort)
	if err != nil {
		return err
	}
	if sort != "" {
		c.User.DefaultSort = types.ParsePersonSort(sort)
	}
	return nil
}

// SaveConfig persists the user settings to the settings table.
func (c *Config) SaveConfig(ctx context.Context, store storage.SettingsStore) error {
	if store == nil {
		return errors.New("config: settings store is required")
	}
	if err := store.SetSetting(ctx, settingDisplayName, c.User.DisplayName); err != nil {
		return fmt.Errorf("config: failed to save user_name: %w", err)
	}
	if err := store.SetSetting(ctx, settingDefaultSort, string(c.User.DefaultSort)); err != nil {
		return fmt.Errorf("config: failed to save default_person_sort: %w", err)
	}
	return nil
}

func lookupSetting(ctx context.Context, store storage.SettingsStore, key string) (string, error) {
	v, err := store.GetSetting(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("config: failed to load %s from database: %w", key, err)
	}
	return v, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: postgres engine requires COMPANION_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}

	switch strings.ToLower(c.AI.Provider) {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderOllama:
	default:
		return fmt.Errorf("config: unknown AI provider %q", c.AI.Provider)
	}

	switch c.AI.SourceMode {
	case SourceModeKeyword, SourceModeSemantic:
	default:
		return fmt.Errorf("config: unknown source mode %q", c.AI.SourceMode)
	}

	switch c.Security.Mode {
	case ModeDevelopment:
	case ModeProduction:
		if c.Security.APIToken == "" {
			return errors.New("config: production mode requires COMPANION_API_TOKEN")
		}
	default:
		return fmt.Errorf("config: unknown security mode %q", c.Security.Mode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Enrichment.Workers < 1 {
		return fmt.Errorf("config: enrichment workers must be >= 1, got %d", c.Enrichment.Workers)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields with any COMPANION_ variables that are set.
func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("COMPANION_PORT", c.Server.Port)
	c.Server.Host = getEnv("COMPANION_HOST", c.Server.Host)
	c.Server.ReadTimeout = getEnvDuration("COMPANION_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("COMPANION_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("COMPANION_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvList("COMPANION_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Storage.Engine = getEnv("COMPANION_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("COMPANION_DATA_PATH", c.Storage.DataPath)
	c.Storage.PostgresDSN = getEnv("COMPANION_POSTGRES_DSN", c.Storage.PostgresDSN)

	c.AI.Provider = getEnv("COMPANION_AI_PROVIDER", c.AI.Provider)
	c.AI.APIKey = getEnv("COMPANION_AI_API_KEY", c.AI.APIKey)
	c.AI.Model = getEnv("COMPANION_AI_MODEL", c.AI.Model)
	c.AI.EmbeddingModel = getEnv("COMPANION_EMBEDDING_MODEL", c.AI.EmbeddingModel)
	c.AI.BaseURL = getEnv("COMPANION_AI_BASE_URL", c.AI.BaseURL)
	c.AI.Timeout = getEnvDuration("COMPANION_AI_TIMEOUT", c.AI.Timeout)
	c.AI.CacheSize = int64(getEnvInt("COMPANION_AI_CACHE_SIZE", int(c.AI.CacheSize)))
	c.AI.CacheTTL = getEnvDuration("COMPANION_AI_CACHE_TTL", c.AI.CacheTTL)
	c.AI.SourceMode = getEnv("COMPANION_SOURCE_MODE", c.AI.SourceMode)

	c.Security.Mode = getEnv("COMPANION_SECURITY_MODE", c.Security.Mode)
	c.Security.APIToken = getEnv("COMPANION_API_TOKEN", c.Security.APIToken)

	c.Backup.Enabled = getEnvBool("COMPANION_BACKUP_ENABLED", c.Backup.Enabled)
	c.Backup.Interval = getEnvDuration("COMPANION_BACKUP_INTERVAL", c.Backup.Interval)
	c.Backup.Path = getEnv("COMPANION_BACKUP_PATH", c.Backup.Path)
	c.Backup.Verify = getEnvBool("COMPANION_BACKUP_VERIFY", c.Backup.Verify)
	c.Backup.Retention.Hourly = getEnvInt("COMPANION_BACKUP_RETENTION_HOURLY", c.Backup.Retention.Hourly)
	c.Backup.Retention.Daily = getEnvInt("COMPANION_BACKUP_RETENTION_DAILY", c.Backup.Retention.Daily)
	c.Backup.Retention.Weekly = getEnvInt("COMPANION_BACKUP_RETENTION_WEEKLY", c.Backup.Retention.Weekly)
	c.Backup.Retention.Monthly = getEnvInt("COMPANION_BACKUP_RETENTION_MONTHLY", c.Backup.Retention.Monthly)

	c.Enrichment.Workers = getEnvInt("COMPANION_ENRICHMENT_WORKERS", c.Enrichment.Workers)
	c.Enrichment.QueueSize = getEnvInt("COMPANION_ENRICHMENT_QUEUE_SIZE", c.Enrichment.QueueSize)
	c.Enrichment.MaxRetries = getEnvInt("COMPANION_ENRICHMENT_MAX_RETRIES", c.Enrichment.MaxRetries)

	c.Sessions.TTL = getEnvDuration("COMPANION_SESSION_TTL", c.Sessions.TTL)
	c.Log.Level = getEnv("COMPANION_LOG_LEVEL", c.Log.Level)

	c.User.DisplayName = getEnv("COMPANION_USER_NAME", c.User.DisplayName)
	c.User.DefaultSort = types.PersonSort(getEnv("COMPANION_DEFAULT_SORT", string(c.User.DefaultSort)))
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable. Unparseable values
// fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool accepts true/1/yes and false/0/no in any case.
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
