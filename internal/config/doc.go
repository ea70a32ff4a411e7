// Package config loads, normalizes, and validates papermill's TOML
// configuration. Defaults live in defaults.go and the embedded
// sample_config.toml documents every key.
package config
