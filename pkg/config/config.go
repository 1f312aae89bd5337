package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath   = "config.yaml"
	defaultAccountsFile = "accounts.yaml"
	defaultStateBackend = "file"
	defaultStateDir     = "./state"
	defaultHTTPTimeout  = 60 * time.Second
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
	defaultCategoryID   = "22"
	defaultRedirectPort = 8085
	defaultTokensDir    = "./tokens"
	defaultChunkSizeMB  = 8
	defaultSchedule     = "@every 6h"
)

type Config struct {
	YouTubeClientID     string `yaml:"-"`
	YouTubeClientSecret string `yaml:"-"`

	AccountsFile string         `yaml:"accounts_file"`
	State        StateConfig    `yaml:"state"`
	HTTP         HTTPConfig     `yaml:"http"`
	YouTube      YouTubeConfig  `yaml:"youtube"`
	S3           S3Config       `yaml:"s3"`
	Schedule     ScheduleConfig `yaml:"schedule"`
}

type StateConfig struct {
	Backend string `yaml:"backend"` // "file", "pebble" or "sqlite"
	Dir     string `yaml:"dir"`
}

type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type YouTubeConfig struct {
	CategoryID   string `yaml:"category_id"`
	RedirectPort int    `yaml:"redirect_port"`
	TokensDir    string `yaml:"tokens_dir"`
	ChunkSizeMB  int    `yaml:"chunk_size_mb"`
}

type S3Config struct {
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// Path returns the config file location, honoring YTRUNNER_CONFIG.
func Path() string {
	return getEnvOrDefault("YTRUNNER_CONFIG", defaultConfigPath)
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		YouTubeClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
	}

	path := Path()
	if err := loadYAMLConfig(path, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	resolveRelative(filepath.Dir(path), cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied and no secrets.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Save writes the YAML part of c to path. Credentials from the
// environment are never written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func loadYAMLConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file %s not found; run `ytrunner setup` to create it", path)
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("YTRUNNER_STATE_DIR"); dir != "" {
		cfg.State.Dir = dir
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = os.Getenv("AWS_REGION")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AccountsFile == "" {
		cfg.AccountsFile = defaultAccountsFile
	}
	applyStateDefaults(cfg)
	applyHTTPDefaults(cfg)
	applyYouTubeDefaults(cfg)
	applyScheduleDefaults(cfg)
}

func applyStateDefaults(cfg *Config) {
	if cfg.State.Backend == "" {
		cfg.State.Backend = defaultStateBackend
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = defaultStateDir
	}
}

func applyHTTPDefaults(cfg *Config) {
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = defaultHTTPTimeout
	}
	// max_retries: -1 disables retries.
	switch {
	case cfg.HTTP.MaxRetries == 0:
		cfg.HTTP.MaxRetries = defaultMaxRetries
	case cfg.HTTP.MaxRetries < 0:
		cfg.HTTP.MaxRetries = 0
	}
	if cfg.HTTP.InitialDelay == 0 {
		cfg.HTTP.InitialDelay = defaultInitialDelay
	}
	if cfg.HTTP.MaxDelay == 0 {
		cfg.HTTP.MaxDelay = defaultMaxDelay
	}
}

func applyYouTubeDefaults(cfg *Config) {
	if cfg.YouTube.CategoryID == "" {
		cfg.YouTube.CategoryID = defaultCategoryID
	}
	if cfg.YouTube.RedirectPort == 0 {
		cfg.YouTube.RedirectPort = defaultRedirectPort
	}
	if cfg.YouTube.TokensDir == "" {
		cfg.YouTube.TokensDir = defaultTokensDir
	}
	if cfg.YouTube.ChunkSizeMB == 0 {
		cfg.YouTube.ChunkSizeMB = defaultChunkSizeMB
	}
}

func applyScheduleDefaults(cfg *Config) {
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = defaultSchedule
	}
}

// resolveRelative anchors relative paths at the config file's directory.
func resolveRelative(base string, cfg *Config) {
	for _, p := range []*string{&cfg.AccountsFile, &cfg.State.Dir, &cfg.YouTube.TokensDir} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

func (c *Config) Validate() error {
	switch c.State.Backend {
	case "file", "pebble", "sqlite":
	default:
		return fmt.Errorf("unknown state backend %q (valid: file, pebble, sqlite)", c.State.Backend)
	}
	if c.YouTube.ChunkSizeMB < 0 {
		return fmt.Errorf("youtube.chunk_size_mb must not be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
