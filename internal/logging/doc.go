// Package logging configures slog for the daemon and CLI.
//
// New builds a logger from explicit options; NewFromConfig derives options
// from application config, teeing output to the daemon log file when a log
// directory is configured. Attribute helpers keep call sites terse and make
// structured field names consistent across packages.
package logging
