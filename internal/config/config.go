package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvAPIToken overrides [backend].api_token when set in the environment or a
// .env file next to the config.
const EnvAPIToken = "REELPIPE_API_TOKEN"

// Paths contains directory and socket configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Backend contains connection settings for the generation backend.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Queue contains dispatch limits and export options for the production queue.
type Queue struct {
	MaxConcurrent         int  `toml:"max_concurrent"`
	DelayBetweenMs        int  `toml:"delay_between_ms"`
	ExportVideo           bool `toml:"export_video"`
	ExportMetadata        bool `toml:"export_metadata"`
	ExportSEO             bool `toml:"export_seo"`
	ExportThumbnailPrompt bool `toml:"export_thumbnail_prompt"`
}

// Realtime contains event channel tuning.
type Realtime struct {
	HeartbeatInterval int `toml:"heartbeat_interval"`
	ReconnectBaseMs   int `toml:"reconnect_base_ms"`
	ReconnectMaxMs    int `toml:"reconnect_max_ms"`
}

// Workflow contains driver loop timing.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Presets locates the production preset catalog.
type Presets struct {
	Path string `toml:"path"`
}

// Config encapsulates all configuration values for reelpipe.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Backend  Backend  `toml:"backend"`
	Queue    Queue    `toml:"queue"`
	Realtime Realtime `toml:"realtime"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
	Presets  Presets  `toml:"presets"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelpipe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and numeric settings clamped. The
// second return is the resolved path, the third whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		// Secrets may live in a .env beside the config file.
		_ = godotenv.Load(filepath.Join(filepath.Dir(resolvedPath), ".env"))

		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if token := strings.TrimSpace(os.Getenv(EnvAPIToken)); token != "" {
		cfg.Backend.APIToken = token
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("reelpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, filepath.Dir(c.Paths.SocketPath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WebSocketURL derives the realtime event stream URL from the backend base URL.
func (c *Config) WebSocketURL() (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(c.Backend.BaseURL))
	if err != nil {
		return "", fmt.Errorf("parse backend base_url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("backend base_url: unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws"
	return parsed.String(), nil
}

// RequestTimeout returns the backend request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeout) * time.Second
}

// DelayBetween returns the inter-dispatch throttle as a duration.
func (c *Config) DelayBetween() time.Duration {
	return time.Duration(c.Queue.DelayBetweenMs) * time.Millisecond
}

// QueuePollInterval returns the driver loop's idle poll interval.
func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Workflow.QueuePollInterval) * time.Second
}

// ErrorRetryInterval returns how long dispatching pauses after a stage
// failure.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Workflow.ErrorRetryInterval) * time.Second
}

// HeartbeatInterval returns the realtime ping interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Realtime.HeartbeatInterval) * time.Second
}

// ReconnectBase returns the first realtime reconnect delay.
func (c *Config) ReconnectBase() time.Duration {
	return time.Duration(c.Realtime.ReconnectBaseMs) * time.Millisecond
}

// ReconnectMax returns the realtime reconnect delay ceiling.
func (c *Config) ReconnectMax() time.Duration {
	return time.Duration(c.Realtime.ReconnectMaxMs) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
