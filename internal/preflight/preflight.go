// Package preflight validates the environment before a pipeline stage
// starts writing.
package preflight

import (
	"context"

	"ctcurator/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the floor for the output filesystem. Exported series
// run to gigabytes; starting a batch onto a nearly full disk only
// produces half-written acquisitions.
const minFreeBytes = 2 << 30

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryRead("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, minFreeBytes))
	return results
}

// Ready reports whether every result passed.
func Ready(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
