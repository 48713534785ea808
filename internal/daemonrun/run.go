package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"volo/internal/config"
	"volo/internal/daemon"
	"volo/internal/logging"
	"volo/internal/preflight"
)

// CurrentLogName is the link in the log directory that always points at the
// log of the most recent run.
const CurrentLogName = "volo.log"

// CurrentLogPath returns the current log link for cfg.
func CurrentLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, CurrentLogName)
}

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipPreflight starts even when required checks fail.
	SkipPreflight bool
}

// Run starts the volo daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("volo-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update volo.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	if !checkReadiness(signalCtx, cfg, logger) && !opts.SkipPreflight {
		return fmt.Errorf("preflight checks failed; run 'volo status' for details")
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "volo.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	components, err := Build(cfg, logger)
	if err != nil {
		logger.Error("wire components", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, logger, components, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bot token and that no other volo instance is running"),
			logging.String(logging.FieldImpact, "the bot is offline"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("volo daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// checkReadiness logs dependency and preflight results and reports whether
// every required check passed.
func checkReadiness(ctx context.Context, cfg *config.Config, logger *slog.Logger) bool {
	ok := true
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		attrs := logging.Args(
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.Bool("available", status.Available),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldEventType, "dependency_snapshot"),
		)
		if status.Available {
			logger.Info("dependency ready", attrs...)
			continue
		}
		logger.Warn("dependency missing", attrs...)
		if !status.Optional {
			ok = false
		}
	}
	for _, result := range preflight.RunAll(ctx, cfg) {
		attrs := logging.Args(
			logging.String("check", result.Name),
			logging.Bool("passed", result.Passed),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_check"),
		)
		if result.Passed {
			logger.Info("preflight passed", attrs...)
			continue
		}
		logger.Warn("preflight failed", attrs...)
		if !result.Optional {
			ok = false
		}
	}
	return ok
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
