package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultComputeWorkers = 4
	DefaultStreamInterval = 5 * time.Second
	DefaultAlertCooldown  = 15 * time.Minute
)

// Config holds the `server:` section of the config file. Other top-level keys
// are ignored so agent and server may share one file.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// TreeConfig is the path of the status tree definition. Relative paths
	// resolve against the directory of the server config file.
	TreeConfig string `yaml:"tree_config"`

	GRPCPort int `yaml:"grpc_port"`
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	Staleness StalenessConfig `yaml:"staleness"`
	Compute   ComputeConfig   `yaml:"compute"`
	Stream    StreamConfig    `yaml:"stream"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	// "mtls" is accepted but requires a TLS listener in front of the server.
	Mode string `yaml:"mode"`

	// KeyEnv names the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) carrying the key.
	// Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StalenessConfig controls expiry of leaf reports.
type StalenessConfig struct {
	// TTL resets a leaf to unknown when no report arrived for it within TTL.
	// Zero disables expiry.
	TTL time.Duration `yaml:"ttl"`
}

// ComputeConfig tunes tree evaluation.
type ComputeConfig struct {
	// Workers bounds the goroutines used to evaluate one level of the tree.
	Workers int `yaml:"workers"`
}

// StreamConfig controls the WebSocket broadcast.
type StreamConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule fires while a node's status matches Condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Node is the tree node the rule watches.
	Node string `yaml:"node"`

	// Condition compares the node's status: "== red", ">= yellow", "!= green".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	applyRuleDefaults(cfg.Server.Alerts.Rules)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	if !filepath.IsAbs(cfg.Server.TreeConfig) {
		cfg.Server.TreeConfig = filepath.Join(filepath.Dir(path), cfg.Server.TreeConfig)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			Compute:  ComputeConfig{Workers: DefaultComputeWorkers},
			Stream:   StreamConfig{Interval: DefaultStreamInterval},
		},
	}
}

func applyRuleDefaults(rules []AlertRule) {
	for i := range rules {
		if rules[i].Cooldown == 0 {
			rules[i].Cooldown = DefaultAlertCooldown
		}
		if rules[i].Severity == "" {
			rules[i].Severity = "warning"
		}
	}
}

func validate(cfg *Config) error {
	s := cfg.Server
	if s.TreeConfig == "" {
		return fmt.Errorf("server.tree_config is required")
	}
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "mtls", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|mtls|none", s.Auth.Mode)
	}
	if s.Auth.Mode == "apikey" && s.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required for apikey mode")
	}
	if s.Staleness.TTL < 0 {
		return fmt.Errorf("server.staleness.ttl must not be negative")
	}
	if s.Compute.Workers < 1 {
		return fmt.Errorf("server.compute.workers must be at least 1")
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}

	names := make(map[string]bool, len(s.Alerts.Rules))
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("alerts.rules[%d]: duplicate name %q", i, r.Name)
		}
		names[r.Name] = true
		if r.Node == "" {
			return fmt.Errorf("alerts.rules[%d] %q: node is required", i, r.Name)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
		if r.Cooldown < 0 {
			return fmt.Errorf("alerts.rules[%d] %q: cooldown must not be negative", i, r.Name)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
