package preflight

import (
	"context"

	"contentpipe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the local preflight checks for the given config.
// Remote checks are gated by their configuration.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Content directory", cfg.Paths.ContentDir),
	}
	if cfg.Images.Enabled && cfg.Paths.PublicDir != "" {
		results = append(results, CheckDirectoryAccess("Public directory", cfg.Paths.PublicDir))
	}
	results = append(results, CheckFile("Sources registry", cfg.Paths.SourcesFile))
	results = append(results, CheckDocuments(cfg))

	if cfg.Generation.APIKey != "" {
		results = append(results, CheckGeneration(ctx, cfg.Generation))
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
