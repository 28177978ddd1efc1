package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarewatch/flarewatch/internal/alerts"
	"github.com/flarewatch/flarewatch/internal/rules"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort           = 8080
	DefaultBufferPerBucket    = 1000
	DefaultEvaluationInterval = 60 * time.Second
	DefaultScrapeInterval     = 30 * time.Second
)

// Config is the root of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server settings.
type ServerConfig struct {
	// HTTPPort serves the REST API, WebSocket stream, and /metrics.
	HTTPPort int `yaml:"http_port"`

	// Auth configures API client authentication.
	Auth AuthConfig `yaml:"auth"`

	// Buffer controls in-memory event retention.
	Buffer BufferConfig `yaml:"buffer"`

	// Evaluation controls the rule scheduler.
	Evaluation EvaluationConfig `yaml:"evaluation"`

	// Scrape lists optional Prometheus exposition endpoints polled into
	// the event stream.
	Scrape ScrapeConfig `yaml:"scrape"`

	// Rules are seeded into the engine at startup and replaced on reload.
	Rules []rules.AlertRule `yaml:"rules"`

	// Channels are seeded notification channels.
	Channels []alerts.Channel `yaml:"channels"`
}

// AuthConfig controls client authentication on the HTTP surface.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv names the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header the key is read from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// BufferConfig controls the event buffer.
type BufferConfig struct {
	// MaxPerBucket caps events held per "{type}:{name}" bucket; the oldest
	// entry is evicted once a bucket is full. Default 1000.
	MaxPerBucket int `yaml:"max_per_bucket"`
}

// EvaluationConfig controls the scheduler.
type EvaluationConfig struct {
	// Interval is the periodic evaluation cadence. Default 60s.
	Interval time.Duration `yaml:"interval"`

	// Immediate additionally evaluates matching rules on every ingested
	// event.
	Immediate bool `yaml:"immediate"`
}

// ScrapeConfig lists Prometheus exposition sources polled by the server.
type ScrapeConfig struct {
	// Interval between polls of each source. Default 30s.
	Interval time.Duration `yaml:"interval"`

	Sources []ScrapeSource `yaml:"sources"`
}

// ScrapeSource is one polled exposition endpoint.
type ScrapeSource struct {
	// ID becomes the name of the emitted "metric" events.
	ID string `yaml:"id"`

	// Endpoint is the full metrics URL, e.g. "http://10.0.0.5:9100/metrics".
	Endpoint string `yaml:"endpoint"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Buffer:   BufferConfig{MaxPerBucket: DefaultBufferPerBucket},
			Evaluation: EvaluationConfig{
				Interval: DefaultEvaluationInterval,
			},
			Scrape: ScrapeConfig{Interval: DefaultScrapeInterval},
		},
	}
}

func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Buffer.MaxPerBucket <= 0 {
		return fmt.Errorf("server.buffer.max_per_bucket must be positive")
	}
	if s.Evaluation.Interval <= 0 {
		return fmt.Errorf("server.evaluation.interval must be positive")
	}
	if s.Scrape.Interval <= 0 {
		return fmt.Errorf("server.scrape.interval must be positive")
	}
	for i, src := range s.Scrape.Sources {
		if src.ID == "" || src.Endpoint == "" {
			return fmt.Errorf("server.scrape.sources[%d]: id and endpoint are required", i)
		}
	}
	for i, r := range s.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("server.rules[%d]: %w", i, err)
		}
	}
	return nil
}
