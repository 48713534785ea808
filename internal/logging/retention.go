package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunLogPattern matches the per-run daemon logs in log_dir. The volo.log
// pointer does not match it.
const RunLogPattern = "volo-*.log"

// PruneRunLogs deletes run logs in dir last written more than retentionDays
// ago and returns how many were removed. The active run log is always kept,
// and retentionDays <= 0 keeps everything.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, active string) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil || len(matches) == 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keep := absolute(active)

	removed := 0
	for _, path := range matches {
		if absolute(path) == keep {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "run log could not be pruned", "log_prune_failed",
				String("path", path),
				Error(err),
				String(FieldImpact, "old run log stays in log_dir"),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
			)
			continue
		}
		removed++
		logger.Debug("run log pruned", String("path", path))
	}
	if removed > 0 {
		logger.Info("old run logs pruned",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "logs_pruned"),
		)
	}
	return removed
}

func absolute(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
