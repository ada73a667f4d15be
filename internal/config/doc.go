// Package config loads, normalizes, and validates courier configuration
// from TOML files, providing defaults suitable for a fresh install.
package config
