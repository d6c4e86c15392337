package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultProbeInterval    = 30 * time.Second
	DefaultShipInterval     = 15 * time.Second
	DefaultBufferSize       = 1000
	DefaultProbeTimeout     = 10 * time.Second
	DefaultFailureThreshold = 1
	DefaultCertWarnDays     = 30
)

// Probe types.
const (
	ProbeHTTP       = "http"
	ProbePrometheus = "prometheus"
	ProbeCert       = "cert"
)

// Config is the top-level agent configuration file.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ID identifies this agent in reports. Defaults to the hostname.
	ID string `yaml:"id"`

	// ServerEndpoint is the gRPC address of statusroll-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// ProbeInterval controls how often every probe runs.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ShipInterval bounds how long a report may wait in the buffer before
	// the shipper flushes a status that has not changed.
	ShipInterval time.Duration `yaml:"ship_interval"`

	// BufferSize is the maximum number of reports held in memory while the
	// server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Probes maps leaf nodes of the server's tree to health checks.
	Probes []Probe `yaml:"probes"`

	// ServerAuth configures how the agent authenticates to statusroll-server.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Probe is one health check whose result is reported as a leaf status.
type Probe struct {
	// Node is the imported node name on the server.
	Node string `yaml:"node"`

	// Type is one of: http | prometheus | cert.
	Type string `yaml:"type"`

	// Endpoint is a URL for http and prometheus probes, host:port for cert.
	Endpoint string `yaml:"endpoint"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`

	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive red observations needed
	// before red is reported. Earlier ones are reported as yellow.
	FailureThreshold int `yaml:"failure_threshold"`

	// http: 2xx responses slower than LatencyWarn are yellow.
	LatencyWarn time.Duration `yaml:"latency_warn"`

	// prometheus: the metric family to read and its thresholds.
	Metric      string   `yaml:"metric"`
	YellowAbove *float64 `yaml:"yellow_above"`
	RedAbove    *float64 `yaml:"red_above"`

	// cert: certificates expiring within WarnDays are yellow.
	WarnDays int `yaml:"warn_days"`
}

// AuthConfig specifies the authentication mode for a probe or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the header (or gRPC metadata key) carrying the API key.
	Header string `yaml:"header"`
	// KeyEnv names the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-probe TLS dial options.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyProbeDefaults(cfg.Agent.Probes)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	host, _ := os.Hostname()
	return &Config{
		Agent: AgentConfig{
			ID:            host,
			ProbeInterval: DefaultProbeInterval,
			ShipInterval:  DefaultShipInterval,
			BufferSize:    DefaultBufferSize,
		},
	}
}

// applyProbeDefaults fills per-probe defaults; list elements cannot be
// pre-populated before unmarshalling.
func applyProbeDefaults(probes []Probe) {
	for i := range probes {
		p := &probes[i]
		if p.Timeout == 0 {
			p.Timeout = DefaultProbeTimeout
		}
		if p.FailureThreshold == 0 {
			p.FailureThreshold = DefaultFailureThreshold
		}
		if p.Type == ProbeCert && p.WarnDays == 0 {
			p.WarnDays = DefaultCertWarnDays
		}
	}
}

func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.ProbeInterval <= 0 {
		return fmt.Errorf("agent.probe_interval must be positive")
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", a.ServerAuth.Mode)
	}

	seen := make(map[string]int, len(a.Probes))
	for i, p := range a.Probes {
		if p.Node == "" {
			return fmt.Errorf("probes[%d]: node is required", i)
		}
		if prev, dup := seen[p.Node]; dup {
			return fmt.Errorf("probes[%d] %q: node already probed by probes[%d]", i, p.Node, prev)
		}
		seen[p.Node] = i
		if p.Endpoint == "" {
			return fmt.Errorf("probes[%d] %q: endpoint is required", i, p.Node)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("probes[%d] %q: timeout must not be negative", i, p.Node)
		}
		if p.FailureThreshold < 1 {
			return fmt.Errorf("probes[%d] %q: failure_threshold must be at least 1", i, p.Node)
		}
		switch p.Type {
		case ProbeHTTP, ProbeCert:
		case ProbePrometheus:
			if p.Metric == "" {
				return fmt.Errorf("probes[%d] %q: metric is required for prometheus probes", i, p.Node)
			}
			if p.YellowAbove != nil && p.RedAbove != nil && *p.YellowAbove > *p.RedAbove {
				return fmt.Errorf("probes[%d] %q: yellow_above must not exceed red_above", i, p.Node)
			}
		default:
			return fmt.Errorf("probes[%d] %q: unknown type %q", i, p.Node, p.Type)
		}
		switch p.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("probes[%d] %q: unknown auth mode %q", i, p.Node, p.Auth.Mode)
		}
	}
	return nil
}
