package preflight

import (
	"context"

	"volo/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Sessions directory", cfg.Paths.SessionsDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckToken(cfg.Discord.Token),
		CheckPlayerMap(cfg.Paths.PlayerMapFile),
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	if cfg.Archive.Enabled {
		results = append(results, CheckArchive(ctx, cfg.Archive))
	}
	if len(cfg.Events.Brokers) > 0 {
		results = append(results, CheckBrokers(ctx, cfg.Events.Brokers))
	}

	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
