// Package config loads and validates the engine configuration from defaults,
// a YAML file, MM_* environment variables and command-line overrides.
package config
