// Package config loads, normalizes, and validates the TOML configuration
// used by every pipeline stage.
package config
