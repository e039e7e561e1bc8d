// Package config loads, normalizes, and validates reelpipe configuration.
//
// Configuration lives in a TOML file (default ~/.config/reelpipe/config.toml)
// with a .env overlay for secrets such as the backend API token. Load returns
// a fully normalized config: paths expanded, numeric settings clamped to their
// documented ranges, and validation failures reported with the offending key.
package config
