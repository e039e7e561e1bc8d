package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelpipe/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Default()
	if err := (&cfg).Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Queue.MaxConcurrent != 1 {
		t.Fatalf("default max_concurrent = %d", cfg.Queue.MaxConcurrent)
	}
	if !cfg.Queue.ExportVideo || !cfg.Queue.ExportSEO {
		t.Fatal("export options should default on")
	}
}

func TestLoadParsesAndExpands(t *testing.T) {
	path := writeConfig(t, `
[paths]
output_dir = "~/productions"
socket_path = "/tmp/reelpipe-test.sock"

[backend]
base_url = "https://backend.example.com/"
request_timeout = 60

[queue]
max_concurrent = 3
delay_between_ms = 250
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config at %q", resolved)
	}
	home, _ := os.UserHomeDir()
	if cfg.Paths.OutputDir != filepath.Join(home, "productions") {
		t.Fatalf("tilde not expanded: %q", cfg.Paths.OutputDir)
	}
	if cfg.Backend.BaseURL != "https://backend.example.com" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Backend.BaseURL)
	}
	if cfg.RequestTimeout() != 60*time.Second {
		t.Fatalf("request timeout = %v", cfg.RequestTimeout())
	}
	if cfg.Queue.MaxConcurrent != 3 || cfg.DelayBetween() != 250*time.Millisecond {
		t.Fatalf("queue settings wrong: %+v", cfg.Queue)
	}
}

func TestLoadClampsQueueSettings(t *testing.T) {
	path := writeConfig(t, `
[paths]
socket_path = "/tmp/reelpipe-test.sock"

[queue]
max_concurrent = 50
delay_between_ms = -5
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.MaxConcurrent != config.MaxConcurrent {
		t.Fatalf("max_concurrent = %d, want clamp to %d", cfg.Queue.MaxConcurrent, config.MaxConcurrent)
	}
	if cfg.Queue.DelayBetweenMs != 0 {
		t.Fatalf("delay_between_ms = %d, want clamp to 0", cfg.Queue.DelayBetweenMs)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"bad scheme",
			"[backend]\nbase_url = \"ftp://example.com\"\n",
			"unsupported scheme",
		},
		{
			"bad log format",
			"[logging]\nformat = \"xml\"\n",
			"unsupported value",
		},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.content)
		_, _, _, err := config.Load(path)
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: err = %v, want containing %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestEnvTokenOverride(t *testing.T) {
	path := writeConfig(t, `
[backend]
api_token = "from-file"
`)
	t.Setenv(config.EnvAPIToken, "from-env")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.APIToken != "from-env" {
		t.Fatalf("api token = %q, want env override", cfg.Backend.APIToken)
	}
}

func TestWebSocketURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:8000", "ws://127.0.0.1:8000/ws"},
		{"https://backend.example.com", "wss://backend.example.com/ws"},
		{"https://backend.example.com/api/", "wss://backend.example.com/api/ws"},
	}
	for _, tc := range cases {
		cfg := config.Default()
		cfg.Backend.BaseURL = tc.base
		got, err := cfg.WebSocketURL()
		if err != nil {
			t.Fatalf("WebSocketURL(%q): %v", tc.base, err)
		}
		if got != tc.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestMissingConfigFallsBackToDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.toml")
	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatalf("config at %q should not exist", resolved)
	}
	if cfg.Backend.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("default base_url = %q", cfg.Backend.BaseURL)
	}
}
