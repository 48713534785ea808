// Package logging assembles structured slog loggers and formatting helpers used
// across Volo.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so command handlers and the
// recording pipeline tag log lines with guild IDs, session IDs, and
// correlation IDs. The package also provides a no-op logger for tests.
package logging
