package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the complete stickies daemon configuration
type Config struct {
	Cards     CardsConfig     `toml:"cards"`
	I18n      I18nConfig      `toml:"i18n"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Broadcast BroadcastConfig `toml:"broadcast"`
	Persist   PersistConfig   `toml:"persist"`
	IPC       IPCConfig       `toml:"ipc"`
	Log       LogConfig       `toml:"log"`
}

// CardsConfig locates card data
type CardsConfig struct {
	// Dir overrides the computed default card directory when set
	Dir      string `toml:"dir"`
	Packaged bool   `toml:"packaged"`
}

// I18nConfig contains language settings
type I18nConfig struct {
	// DefaultLanguage is the catalog fallback and the last choice of
	// PreferredLanguage
	DefaultLanguage   string `toml:"default_language"`
	PreferredLanguage string `toml:"preferred_language"`
	LocalesDir        string `toml:"locales_dir"`
}

// WorkspaceConfig contains workspace registry settings
type WorkspaceConfig struct {
	Scheme                   string `toml:"scheme"`
	TransitionTimeoutSeconds int    `toml:"transition_timeout_seconds"`
	InitialName              string `toml:"initial_name"`
}

// BroadcastConfig contains subscriber fan-out settings
type BroadcastConfig struct {
	BufferSize   int    `toml:"buffer_size"`
	RedisURL     string `toml:"redis_url"`
	RedisChannel string `toml:"redis_channel"`
}

// PersistConfig contains settings write-queue settings
type PersistConfig struct {
	QueueSize      int `toml:"queue_size"`
	MaxAttempts    int `toml:"max_attempts"`
	RetryBackoffMS int `toml:"retry_backoff_ms"`
}

// IPCConfig contains socket settings
type IPCConfig struct {
	// Socket is resolved against the data directory when relative
	Socket string `toml:"socket"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Cards: CardsConfig{
			Dir:      "",
			Packaged: false,
		},
		I18n: I18nConfig{
			DefaultLanguage:   "en",
			PreferredLanguage: "",
			LocalesDir:        "",
		},
		Workspace: WorkspaceConfig{
			Scheme:                   "media",
			TransitionTimeoutSeconds: 0,
			InitialName:              "Main",
		},
		Broadcast: BroadcastConfig{
			BufferSize:   16,
			RedisURL:     "",
			RedisChannel: "stickies:globalStoreChanged",
		},
		Persist: PersistConfig{
			QueueSize:      64,
			MaxAttempts:    3,
			RetryBackoffMS: 100,
		},
		IPC: IPCConfig{
			Socket: "stickies.sock",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads config.toml from the data directory.
// Missing fields are filled with defaults from DefaultConfig().
func LoadConfig(dataDir string) (*Config, error) {
	configPath := Paths{DataDir: dataDir}.ConfigFile()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the config to config.toml in the data directory
func SaveConfig(dataDir string, cfg *Config) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.Create(Paths{DataDir: dataDir}.ConfigFile())
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values from STICKIES_* environment variables.
func (c *Config) ApplyEnv() {
	c.Cards.Dir = getenv("STICKIES_CARD_DIR", c.Cards.Dir)
	c.I18n.PreferredLanguage = getenv("STICKIES_LANGUAGE", c.I18n.PreferredLanguage)
	c.Log.Level = getenv("STICKIES_LOG_LEVEL", c.Log.Level)
	c.Broadcast.RedisURL = getenv("STICKIES_REDIS_URL", c.Broadcast.RedisURL)
}

// PreferredLanguage returns the configured language, else the one named by
// $LANG, else the default language.
func (c *Config) PreferredLanguage() string {
	if c.I18n.PreferredLanguage != "" {
		return c.I18n.PreferredLanguage
	}
	if lang := localeLanguage(os.Getenv("LANG")); lang != "" {
		return lang
	}
	return c.I18n.DefaultLanguage
}

// TransitionTimeout returns the workspace transition deadline, zero for none.
func (c *Config) TransitionTimeout() time.Duration {
	if c.Workspace.TransitionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Workspace.TransitionTimeoutSeconds) * time.Second
}

// RetryBackoff returns the initial delay between persistence retries.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Persist.RetryBackoffMS) * time.Millisecond
}

// SlogLevel parses the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// DefaultCardDir computes where card data lives when [cards] dir is unset:
// inside the data directory for packaged installs, otherwise next to the
// working directory.
func DefaultCardDir(paths Paths, packaged bool) (string, error) {
	if packaged {
		return filepath.Join(paths.DataDir, "media_stickies_data"), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return filepath.Join(cwd, "media_stickies_data"), nil
}

// CardDir returns the configured card directory or the computed default.
func (c *Config) CardDir(paths Paths) (string, error) {
	if c.Cards.Dir != "" {
		return c.Cards.Dir, nil
	}
	return DefaultCardDir(paths, c.Cards.Packaged)
}

// localeLanguage turns a POSIX locale such as ja_JP.UTF-8 into a BCP 47
// tag such as ja-JP.
func localeLanguage(locale string) string {
	locale, _, _ = strings.Cut(locale, ".")
	locale, _, _ = strings.Cut(locale, "@")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(locale, "_", "-")
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
