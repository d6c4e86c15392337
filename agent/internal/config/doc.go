// Package config loads and watches the agent configuration file.
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: server_endpoint, probe_interval, ship_interval, buffer_size,
//     probes [], server_auth
//   - Probe: node, type (http|prometheus|cert), endpoint, auth, tls, timeout,
//     failure_threshold and the type-specific thresholds
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, password_env; Key(), Token() and Password()
//     resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s probes, 15s ship,
// 1000 buffer, 10s probe timeout, failure_threshold 1, 30 cert warn days),
// then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. The watch is re-added after each
// event to survive the rename→create pattern of atomic-save editors.
package config
