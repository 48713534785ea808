package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"volo/internal/config"
	"volo/internal/discord"
	"volo/internal/logging"
)

// LockName is the single-instance lock file inside the log directory.
const LockName = "volo.lock"

const shutdownTimeout = 30 * time.Second

// Handler serves gateway events and can stop every active recording.
type Handler interface {
	discord.Handler
	Shutdown(ctx context.Context)
}

// Gateway is the chat connection the daemon opens and closes.
type Gateway interface {
	SetHandler(h discord.Handler)
	Open(ctx context.Context) error
	Close() error
}

// Components are the pieces the daemon owns for its lifetime.
type Components struct {
	Handler Handler
	Gateway Gateway
	// Closers are released after the gateway, last one first.
	Closers []io.Closer
}

// Daemon runs the bot and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	components Components
	logPath    string

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	started time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	StartedAt    time.Time
	LockFilePath string
	LogPath      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, c Components, logPath string) (*Daemon, error) {
	if cfg == nil || c.Handler == nil || c.Gateway == nil {
		return nil, errors.New("daemon requires config, handler, and gateway")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		components: c,
		logPath:    logPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// LockPath returns the lock file location for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, LockName)
}

// Start acquires the lock and connects to the gateway.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another volo instance is already running")
	}

	d.components.Gateway.SetHandler(d.components.Handler)
	if err := d.components.Gateway.Open(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("open gateway: %w", err)
	}

	d.started = time.Now()
	d.running.Store(true)
	d.logger.Info("volo daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop finalizes active recordings, closes the gateway and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	d.components.Handler.Shutdown(ctx)
	if err := d.components.Gateway.Close(); err != nil {
		d.logger.Warn("gateway close failed", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("volo daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases owned resources.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	for i := len(d.components.Closers) - 1; i >= 0; i-- {
		if c := d.components.Closers[i]; c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	d.components.Closers = nil
	return errors.Join(errs...)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		StartedAt:    d.started,
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
	}
}

// InstanceRunning reports whether another process holds the lock for cfg.
func InstanceRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	_ = lock.Unlock()
	return false, nil
}
