// Package config provides the configuration structure for the voice client and worker.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Default values applied by ApplyDefaults.
const (
	DefaultBaseURL          = "http://localhost:8000"
	DefaultTimeoutSeconds   = 120
	DefaultUserAgent        = "VoiceApp-GoClient/1.0"
	DefaultWorkers          = 4
	DefaultRateLimit        = 5
	DefaultPollIntervalMS   = 1000
	DefaultOutputDir        = "outputs"
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultTextSubject      = "text.processed"
	DefaultAudioBucket      = "AUDIO_FILES"
	DefaultTextBucket       = "TEXT_FILES"
	dirPermissions          = 0o750
	errFmtLoadConfigurator  = "failed to load configuration from configurator: %w"
	errFmtReadConfigFile    = "failed to read config file %s: %w"
	errFmtParseConfig       = "failed to parse configuration: %w"
	errFmtInvalidBaseURL    = "%w: %q"
	errFmtCreateDirectories = "failed to create directory %s: %w"
)

// Validation errors.
var (
	ErrInvalidBaseURL  = errors.New("api.base_url must be an absolute http(s) URL")
	ErrInvalidTimeout  = errors.New("api.timeout_seconds must be positive")
	ErrInvalidWorkers  = errors.New("batch.workers must be positive")
	ErrInvalidRate     = errors.New("batch.rate_limit must be positive")
	ErrInvalidInterval = errors.New("batch.poll_interval_ms must be positive")
)

// APIConfig describes how to reach the voice backend.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// BatchConfig controls the batch engine.
type BatchConfig struct {
	Workers        int `toml:"workers"`
	RateLimit      int `toml:"rate_limit"`
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// PollInterval returns the job status polling interval.
func (b BatchConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMS) * time.Millisecond
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	TextProcessedSubject   string `toml:"text_processed_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	TextObjectStoreBucket  string `toml:"text_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	API   APIConfig   `toml:"api"`
	Batch BatchConfig `toml:"batch"`
	NATS  NATSConfig  `toml:"nats"`
	Paths PathsConfig `toml:"paths"`
}

// Load loads the project configuration through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf(errFmtLoadConfigurator, err)
	}

	return finish(&cfg)
}

// LoadFile reads and parses an explicit TOML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadConfigFile, path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf(errFmtParseConfig, err)
	}

	return finish(&cfg)
}

// Default returns a configuration made only of defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}

	if c.API.UserAgent == "" {
		c.API.UserAgent = DefaultUserAgent
	}

	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Batch.Workers == 0 {
		c.Batch.Workers = DefaultWorkers
	}

	if c.Batch.RateLimit == 0 {
		c.Batch.RateLimit = DefaultRateLimit
	}

	if c.Batch.PollIntervalMS == 0 {
		c.Batch.PollIntervalMS = DefaultPollIntervalMS
	}

	if c.NATS.URL == "" {
		c.NATS.URL = DefaultNATSURL
	}

	if c.NATS.TextProcessedSubject == "" {
		c.NATS.TextProcessedSubject = DefaultTextSubject
	}

	if c.NATS.AudioObjectStoreBucket == "" {
		c.NATS.AudioObjectStoreBucket = DefaultAudioBucket
	}

	if c.NATS.TextObjectStoreBucket == "" {
		c.NATS.TextObjectStoreBucket = DefaultTextBucket
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = os.TempDir()
	}

	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = DefaultOutputDir
	}
}

// Validate rejects values the client cannot work with.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf(errFmtInvalidBaseURL, ErrInvalidBaseURL, c.API.BaseURL)
	}

	switch {
	case c.API.TimeoutSeconds < 0:
		return ErrInvalidTimeout
	case c.Batch.Workers < 0:
		return ErrInvalidWorkers
	case c.Batch.RateLimit < 0:
		return ErrInvalidRate
	case c.Batch.PollIntervalMS < 0:
		return ErrInvalidInterval
	}

	return nil
}

// EnsureDirectories creates the log and output directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.BaseLogsDir, c.Paths.OutputDir} {
		err := os.MkdirAll(dir, dirPermissions)
		if err != nil {
			return fmt.Errorf(errFmtCreateDirectories, dir, err)
		}
	}

	return nil
}
