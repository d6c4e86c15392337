// Package config loads the `server:` section of the statusroll config file.
//
// Load(path) reads the YAML, applies defaults (gRPC 50051, HTTP 8080, four
// compute workers, 5s stream interval, 15m alert cooldown), validates ports,
// auth mode, alert rules and webhook types, and resolves tree_config relative
// to the config file's directory.
//
// Secrets are never stored in the file: AuthConfig.Key and WebhookConfig.URL
// read the environment variables the file names.
package config
