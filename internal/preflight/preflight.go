// Package preflight runs the start-up environment checks the daemon and the
// CLI status command share.
package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"reelpipe/internal/backend"
	"reelpipe/internal/config"
	"reelpipe/internal/logging"
	"reelpipe/internal/presets"
)

// Result is the outcome of one check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the least free space the output volume should have before
// queueing multi-hundred-megabyte renders.
const minFreeBytes = 500 << 20

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckBackend(ctx, cfg),
		CheckOutputDir(cfg.Paths.OutputDir),
	}
	if cfg.Presets.Path != "" {
		results = append(results, CheckPresets(cfg.Presets.Path))
	}
	return results
}

// CheckBackend verifies the production backend is reachable and healthy.
func CheckBackend(ctx context.Context, cfg *config.Config) Result {
	const name = "Backend"
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := backend.New(cfg.Backend, logging.NewNop())
	if err := client.Health(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Backend.BaseURL, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (healthy)", cfg.Backend.BaseURL)}
}

// CheckOutputDir verifies the output directory exists, is writable, and has
// room for rendered videos.
func CheckOutputDir(path string) Result {
	const name = "Output directory"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: only %d MiB free)", path, free>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok, %d GiB free)", path, free>>30)}
}

// CheckPresets verifies the preset catalog parses.
func CheckPresets(path string) Result {
	const name = "Presets"
	catalog, err := presets.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d presets)", path, catalog.Len())}
}
