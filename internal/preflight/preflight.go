package preflight

import (
	"context"

	"gifconv/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	// An explicit binary never extracts, so the install location is irrelevant.
	if cfg.Transcoder.Binary == "" {
		results = append(results, CheckInstallDir(cfg.Paths.InstallDir))
		results = append(results, CheckResourceArchive(cfg))
	}

	return results
}
