package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"reelpipe/internal/config"
	"reelpipe/internal/preflight"
)

func TestCheckOutputDir(t *testing.T) {
	dir := t.TempDir()
	if result := preflight.CheckOutputDir(dir); !result.Passed {
		t.Fatalf("writable temp dir should pass: %+v", result)
	}

	if result := preflight.CheckOutputDir(filepath.Join(dir, "missing")); result.Passed {
		t.Fatal("missing dir should fail")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckOutputDir(file); result.Passed {
		t.Fatal("regular file should fail")
	}
}

func TestCheckPresets(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "presets.yaml")
	if err := os.WriteFile(good, []byte("presets:\n  - name: shorts-vi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckPresets(good); !result.Passed {
		t.Fatalf("valid catalog should pass: %+v", result)
	}
	if result := preflight.CheckPresets(filepath.Join(dir, "missing.yaml")); result.Passed {
		t.Fatal("missing catalog should fail")
	}
}

func TestCheckBackend(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer healthy.Close()

	cfg := config.Default()
	cfg.Backend.BaseURL = healthy.URL
	if result := preflight.CheckBackend(context.Background(), &cfg); !result.Passed {
		t.Fatalf("healthy backend should pass: %+v", result)
	}

	cfg.Backend.BaseURL = "http://127.0.0.1:1"
	if result := preflight.CheckBackend(context.Background(), &cfg); result.Passed {
		t.Fatal("unreachable backend should fail")
	}
}
