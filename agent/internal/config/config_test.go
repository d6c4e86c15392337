package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
agent:
  server_endpoint: "localhost:50051"
  probe_interval: 10s
  ship_interval: 5s
  buffer_size: 500
  probes:
    - node: db_primary
      type: prometheus
      endpoint: "http://db:9187/metrics"
      metric: pg_replication_lag_seconds
      yellow_above: 5
      red_above: 30
      failure_threshold: 3
    - node: api_server_1
      type: http
      endpoint: "http://api-1:8080/healthz"
      latency_warn: 250ms
      auth:
        mode: bearer
        token_env: API_TOKEN
`
	cfg := loadFromString(t, yaml)

	if cfg.Agent.ServerEndpoint != "localhost:50051" {
		t.Errorf("server_endpoint: got %q", cfg.Agent.ServerEndpoint)
	}
	if cfg.Agent.ProbeInterval != 10*time.Second {
		t.Errorf("probe_interval: got %v", cfg.Agent.ProbeInterval)
	}
	if cfg.Agent.BufferSize != 500 {
		t.Errorf("buffer_size: got %d", cfg.Agent.BufferSize)
	}
	if len(cfg.Agent.Probes) != 2 {
		t.Fatalf("probes: got %d, want 2", len(cfg.Agent.Probes))
	}

	db := cfg.Agent.Probes[0]
	if db.Node != "db_primary" || db.Type != ProbePrometheus {
		t.Errorf("probe 0: got %q/%q", db.Node, db.Type)
	}
	if db.YellowAbove == nil || *db.YellowAbove != 5 {
		t.Errorf("yellow_above: got %v, want 5", db.YellowAbove)
	}
	if db.RedAbove == nil || *db.RedAbove != 30 {
		t.Errorf("red_above: got %v, want 30", db.RedAbove)
	}
	if db.FailureThreshold != 3 {
		t.Errorf("failure_threshold: got %d, want 3", db.FailureThreshold)
	}

	api := cfg.Agent.Probes[1]
	if api.LatencyWarn != 250*time.Millisecond {
		t.Errorf("latency_warn: got %v", api.LatencyWarn)
	}
	if api.Auth.Mode != "bearer" || api.Auth.TokenEnv != "API_TOKEN" {
		t.Errorf("auth: got %+v", api.Auth)
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - node: edge_cert
      type: cert
      endpoint: "edge.example.com:443"
`
	cfg := loadFromString(t, yaml)

	if cfg.Agent.ProbeInterval != DefaultProbeInterval {
		t.Errorf("default probe_interval: got %v, want %v", cfg.Agent.ProbeInterval, DefaultProbeInterval)
	}
	if cfg.Agent.ShipInterval != DefaultShipInterval {
		t.Errorf("default ship_interval: got %v, want %v", cfg.Agent.ShipInterval, DefaultShipInterval)
	}
	if cfg.Agent.BufferSize != DefaultBufferSize {
		t.Errorf("default buffer_size: got %d, want %d", cfg.Agent.BufferSize, DefaultBufferSize)
	}
	p := cfg.Agent.Probes[0]
	if p.Timeout != DefaultProbeTimeout {
		t.Errorf("default timeout: got %v, want %v", p.Timeout, DefaultProbeTimeout)
	}
	if p.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("default failure_threshold: got %d, want %d", p.FailureThreshold, DefaultFailureThreshold)
	}
	if p.WarnDays != DefaultCertWarnDays {
		t.Errorf("default warn_days: got %d, want %d", p.WarnDays, DefaultCertWarnDays)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing server endpoint",
			yaml:    "agent:\n  probes: []\n",
			wantErr: "server_endpoint is required",
		},
		{
			name: "unknown probe type",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - node: mystery
      type: ping
      endpoint: "http://localhost:9999"
`,
			wantErr: `unknown type "ping"`,
		},
		{
			name: "missing node",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - type: http
      endpoint: "http://localhost:9999"
`,
			wantErr: "node is required",
		},
		{
			name: "duplicate node",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - {node: a, type: http, endpoint: "http://a"}
    - {node: a, type: cert, endpoint: "a:443"}
`,
			wantErr: "already probed",
		},
		{
			name: "prometheus without metric",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - {node: a, type: prometheus, endpoint: "http://a/metrics"}
`,
			wantErr: "metric is required",
		},
		{
			name: "inverted thresholds",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - {node: a, type: prometheus, endpoint: "http://a/metrics", metric: m, yellow_above: 10, red_above: 1}
`,
			wantErr: "yellow_above must not exceed red_above",
		},
		{
			name: "negative failure threshold",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - {node: a, type: http, endpoint: "http://a", failure_threshold: -2}
`,
			wantErr: "failure_threshold",
		},
		{
			name: "unknown auth mode",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  probes:
    - node: a
      type: http
      endpoint: "http://a"
      auth:
        mode: magictoken
`,
			wantErr: `unknown auth mode "magictoken"`,
		},
		{
			name: "unknown server auth mode",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  server_auth:
    mode: basic
`,
			wantErr: "server_auth",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadStringErr(t, tc.yaml)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error: got %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAuthConfig_Secrets(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	t.Setenv("TEST_BEARER_TOKEN", "mytoken")
	t.Setenv("TEST_PASSWORD", "hunter2")

	a := AuthConfig{KeyEnv: "TEST_API_KEY", TokenEnv: "TEST_BEARER_TOKEN", PasswordEnv: "TEST_PASSWORD"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
	if got := a.Token(); got != "mytoken" {
		t.Errorf("Token(): got %q, want %q", got, "mytoken")
	}
	if got := a.Password(); got != "hunter2" {
		t.Errorf("Password(): got %q, want %q", got, "hunter2")
	}

	var empty AuthConfig
	if empty.Key() != "" || empty.Token() != "" || empty.Password() != "" {
		t.Error("unset env names should resolve to empty strings")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("agent:\n  server_endpoint: a:1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go func() { _ = Watch(ctx, path, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	write("agent:\n  server_endpoint: broken\n  buffer_size: -1\n")
	time.Sleep(2 * watchDebounce)
	write("agent:\n  server_endpoint: b:2\n")

	select {
	case cfg := <-got:
		if cfg.Agent.ServerEndpoint != "b:2" {
			t.Errorf("reloaded endpoint: got %q, want %q", cfg.Agent.ServerEndpoint, "b:2")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
