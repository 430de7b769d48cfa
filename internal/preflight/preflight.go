package preflight

import (
	"context"
	"path/filepath"

	"sessionq/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Path   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config. The journal
// directory is only checked when the journal is enabled.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Journal.Enabled {
		dir := filepath.Dir(cfg.Journal.Path)
		if dir != cfg.Paths.StateDir {
			results = append(results, CheckDirectoryAccess("Journal directory", dir))
		}
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
