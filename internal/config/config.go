package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const appName = "deepfeed"

// Provider names accepted in [generation].provider
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderFixture   = "fixture"
	ProviderReference = "reference"
)

// ErrConfigurationMissing means a required setting, such as the API key of a
// hosted provider, could not be resolved.
var ErrConfigurationMissing = errors.New("configuration missing")

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Feed       FeedConfig       `toml:"feed"`
	Generation GenerationConfig `toml:"generation"`
	Reference  ReferenceConfig  `toml:"reference"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Log        LogConfig        `toml:"log"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Email      EmailConfig      `toml:"email"`
}

type FeedConfig struct {
	PageSize         int      `toml:"page_size" validate:"gt=0"`
	PlaceholderCount int      `toml:"placeholder_count" validate:"gte=0,lte=10"`
	BiasTopics       int      `toml:"bias_topics" validate:"gte=0"`
	DefaultTopics    []string `toml:"default_topics" validate:"min=1,dive,required"`
}

type GenerationConfig struct {
	Provider          string  `toml:"provider" validate:"oneof=openai anthropic fixture reference"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int     `toml:"max_tokens" validate:"gt=0"`
	PostsPerTopic     int     `toml:"posts_per_topic" validate:"gt=0"`
	ChildrenPerExpand int     `toml:"children_per_expand" validate:"gt=0"`
	Concurrency       int     `toml:"concurrency" validate:"gt=0"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"`
	FixturePath       string  `toml:"fixture_path"`
}

type ReferenceConfig struct {
	Headless   bool   `toml:"headless"`
	Language   string `toml:"language" validate:"required,alpha,max=8"`
	Paragraphs int    `toml:"paragraphs" validate:"gt=0"`
}

type ScheduleConfig struct {
	PersistInterval string `toml:"persist_interval" validate:"required"`
	Timezone        string `toml:"timezone"`
}

type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
	// File is where logs go. Empty means the cache directory.
	File string `toml:"file"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint; empty disables it.
	Listen string `toml:"listen" validate:"omitempty,hostname_port"`
}

// EmailConfig is where snapshots are mailed. An empty provider disables mail.
type EmailConfig struct {
	Provider string `toml:"provider" validate:"omitempty,oneof=smtp"`
	SMTPHost string `toml:"smtp_host" validate:"required_with=Provider"`
	SMTPPort int    `toml:"smtp_port" validate:"gt=0,lte=65535"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address" validate:"required_with=Provider"`
	ToAddr   string `toml:"to_address" validate:"omitempty,email"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Feed: FeedConfig{
			PageSize:         20,
			PlaceholderCount: 1,
			BiasTopics:       3,
			DefaultTopics:    []string{"Technology", "Science", "History", "Nature", "Art"},
		},
		Generation: GenerationConfig{
			Provider:          ProviderOpenAI,
			Model:             "gpt-3.5-turbo",
			Temperature:       0.7,
			MaxTokens:         100,
			PostsPerTopic:     1,
			ChildrenPerExpand: 3,
			Concurrency:       4,
			RequestsPerSecond: 2,
		},
		Reference: ReferenceConfig{
			Headless:   true,
			Language:   "en",
			Paragraphs: 3,
		},
		Schedule: ScheduleConfig{
			PersistInterval: "@every 1m",
			Timezone:        "Local",
		},
		Log: LogConfig{
			Level: "info",
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory, creating it if
// needed.
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(cacheDir, appName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	return dir, nil
}

// Load reads config from the default path. A missing file yields the
// defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads config from path on top of the defaults, so keys absent from
// the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
