package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks settings that normalize cannot repair.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend base_url: value is required")
	}
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend base_url: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("backend base_url: missing host")
	}

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return fmt.Errorf("paths output_dir: value is required")
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		return fmt.Errorf("paths socket_path: value is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
