package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"volo/internal/logging"
)

// DefaultRetryDelay is the pause before a crashed worker is restarted.
const DefaultRetryDelay = 5 * time.Second

// CrashHook observes worker crashes; attempt is the number of the retry that
// has been scheduled.
type CrashHook func(guildID string, attempt int, err error)

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func defaultAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// worker registration for one guild
type registration struct {
	worker    Worker
	voice     Voice
	queue     *Queue
	cfg       WorkerConfig
	attempt   int
	recording bool
	drain     func()
}

// retryTask is a pending restart after a crash. It carries everything needed
// to start the worker again.
type retryTask struct {
	guildID string
	voice   Voice
	queue   *Queue
	cfg     WorkerConfig
	attempt int
	drain   func()
	timer   timer
}

// Supervisor owns at most one capture worker per guild and restarts workers
// that crash after a fixed delay, without a retry cap. A manual Stop or Close
// cancels a pending restart.
type Supervisor struct {
	factory Factory
	delay   time.Duration
	after   afterFunc
	logger  *slog.Logger
	onCrash CrashHook

	mu      sync.Mutex
	workers map[string]*registration
	retries map[string]*retryTask
}

// NewSupervisor constructs a supervisor. A non-positive delay uses
// DefaultRetryDelay.
func NewSupervisor(factory Factory, delay time.Duration, logger *slog.Logger) *Supervisor {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Supervisor{
		factory: factory,
		delay:   delay,
		after:   defaultAfterFunc,
		logger:  logging.NewComponentLogger(logger, "supervisor"),
		workers: make(map[string]*registration),
		retries: make(map[string]*retryTask),
	}
}

// OnCrash registers a hook invoked after a crash has been handled.
func (s *Supervisor) OnCrash(hook CrashHook) {
	s.mu.Lock()
	s.onCrash = hook
	s.mu.Unlock()
}

// Start registers and starts a worker for the guild and attaches it to the
// voice connection. It is a no-op when a worker is already registered.
func (s *Supervisor) Start(guildID string, voice Voice, queue *Queue, cfg WorkerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pending, ok := s.retries[guildID]; ok {
		pending.timer.Stop()
		delete(s.retries, guildID)
	}
	return s.startLocked(guildID, voice, queue, cfg, 0)
}

func (s *Supervisor) startLocked(guildID string, voice Voice, queue *Queue, cfg WorkerConfig, attempt int) error {
	if _, ok := s.workers[guildID]; ok {
		s.logger.Debug("capture worker already registered; start ignored", logging.Guild(guildID))
		return nil
	}
	worker, err := s.factory(guildID, queue, cfg)
	if err != nil {
		return fmt.Errorf("create capture worker: %w", err)
	}
	reg := &registration{
		worker:    worker,
		voice:     voice,
		queue:     queue,
		cfg:       cfg,
		attempt:   attempt,
		recording: true,
	}
	if err := worker.Start(func(err error) { s.handleFailure(guildID, reg, err) }); err != nil {
		_ = worker.Close()
		return fmt.Errorf("start capture worker: %w", err)
	}
	if voice != nil {
		if err := voice.StartRecording(worker); err != nil {
			_ = worker.Close()
			return fmt.Errorf("attach capture worker to voice: %w", err)
		}
	}
	s.workers[guildID] = reg
	s.logger.Info("capture started",
		logging.Guild(guildID),
		logging.Int("attempt", attempt),
		logging.String("language", cfg.Language),
		logging.String(logging.FieldEventType, "capture_started"),
	)
	return nil
}

// handleFailure tears down a crashed worker and schedules its restart. The
// registration is removed and the retry registered under one lock so that a
// concurrent Stop either sees the worker or the pending retry.
func (s *Supervisor) handleFailure(guildID string, reg *registration, err error) {
	s.mu.Lock()
	current, ok := s.workers[guildID]
	if !ok || current != reg {
		s.mu.Unlock()
		s.logger.Debug("failure from replaced capture worker ignored", logging.Guild(guildID), logging.Error(err))
		return
	}
	delete(s.workers, guildID)
	if !reg.recording {
		s.mu.Unlock()
		s.logger.Debug("capture worker failed after stop; not restarting", logging.Guild(guildID), logging.Error(err))
		_ = reg.worker.Close()
		return
	}
	task := &retryTask{
		guildID: guildID,
		voice:   reg.voice,
		queue:   reg.queue,
		cfg:     reg.cfg,
		attempt: reg.attempt + 1,
		drain:   reg.drain,
	}
	reg.drain = nil
	task.timer = s.after(s.delay, func() { s.runRetry(task) })
	s.retries[guildID] = task
	hook := s.onCrash
	s.mu.Unlock()

	if reg.voice != nil {
		reg.voice.StopRecording()
	}
	_ = reg.worker.Close()
	logging.ErrorWithContext(s.logger, "capture worker crashed; restart scheduled", "capture_worker_crashed",
		logging.Guild(guildID),
		logging.Error(err),
		logging.Int("retry_attempt", task.attempt),
		logging.Duration("retry_in", s.delay),
		logging.String(logging.FieldErrorHint, "check the transcriber logs; restarts continue until recording stops"),
	)
	if hook != nil {
		hook(guildID, task.attempt, err)
	}
}

func (s *Supervisor) runRetry(task *retryTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retries[task.guildID] != task {
		return
	}
	delete(s.retries, task.guildID)
	if err := s.startLocked(task.guildID, task.voice, task.queue, task.cfg, task.attempt); err != nil {
		next := &retryTask{
			guildID: task.guildID,
			voice:   task.voice,
			queue:   task.queue,
			cfg:     task.cfg,
			attempt: task.attempt + 1,
			drain:   task.drain,
		}
		next.timer = s.after(s.delay, func() { s.runRetry(next) })
		s.retries[task.guildID] = next
		logging.WarnWithContext(s.logger, "capture restart failed; retrying", "capture_restart_failed",
			logging.Guild(task.guildID),
			logging.Int("attempt", task.attempt),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no audio is captured until the worker restarts"),
		)
		return
	}
	if reg, ok := s.workers[task.guildID]; ok {
		reg.drain = task.drain
	}
}

// AttachTask associates a cancel function (the periodic drain) with the
// guild's worker. The task survives crash restarts; Stop and Close invoke it.
// Without a registered worker the task is cancelled immediately.
func (s *Supervisor) AttachTask(guildID string, cancel func()) {
	s.mu.Lock()
	reg, ok := s.workers[guildID]
	if ok {
		previous := reg.drain
		reg.drain = cancel
		s.mu.Unlock()
		if previous != nil {
			previous()
		}
		return
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop ends recording for the guild: the voice connection stops delivering
// packets, the worker flushes pending output, the recording flag is cleared
// and the attached task is cancelled. A pending crash restart is cancelled.
// The worker stays registered until Close.
func (s *Supervisor) Stop(guildID string) {
	s.mu.Lock()
	var task func()
	if pending, ok := s.retries[guildID]; ok {
		pending.timer.Stop()
		delete(s.retries, guildID)
		task = pending.drain
		s.logger.Info("pending capture restart cancelled", logging.Guild(guildID))
	}
	reg, ok := s.workers[guildID]
	if ok {
		reg.recording = false
		task = reg.drain
		reg.drain = nil
	}
	s.mu.Unlock()
	if ok {
		if reg.voice != nil {
			reg.voice.StopRecording()
		}
		reg.worker.Stop()
	}
	if task != nil {
		task()
	}
}

// Close releases the guild's worker. Safe to call when none is registered.
func (s *Supervisor) Close(guildID string) {
	s.mu.Lock()
	var task func()
	if pending, ok := s.retries[guildID]; ok {
		pending.timer.Stop()
		delete(s.retries, guildID)
		task = pending.drain
	}
	reg, ok := s.workers[guildID]
	delete(s.workers, guildID)
	if ok && reg.drain != nil {
		task = reg.drain
		reg.drain = nil
	}
	s.mu.Unlock()
	if task != nil {
		task()
	}
	if !ok {
		return
	}
	if reg.recording && reg.voice != nil {
		reg.voice.StopRecording()
	}
	if err := reg.worker.Close(); err != nil {
		s.logger.Debug("capture worker close failed", logging.Guild(guildID), logging.Error(err))
	}
}

// CloseAll releases every worker and cancels all pending restarts.
func (s *Supervisor) CloseAll() {
	s.mu.Lock()
	guilds := make([]string, 0, len(s.workers)+len(s.retries))
	for id := range s.workers {
		guilds = append(guilds, id)
	}
	for id := range s.retries {
		if _, ok := s.workers[id]; !ok {
			guilds = append(guilds, id)
		}
	}
	s.mu.Unlock()
	for _, id := range guilds {
		s.Close(id)
	}
}

// SetLanguage updates the language of a running worker and of any pending
// restart. It is ignored when the guild has neither.
func (s *Supervisor) SetLanguage(guildID, language string) {
	s.mu.Lock()
	if pending, ok := s.retries[guildID]; ok {
		pending.cfg.Language = language
	}
	reg, ok := s.workers[guildID]
	if ok {
		reg.cfg.Language = language
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := reg.worker.SetLanguage(language); err != nil {
		s.logger.Debug("capture worker language update ignored", logging.Guild(guildID), logging.Error(err))
	}
}

// IsRecording reports whether the guild has a registered, recording worker.
func (s *Supervisor) IsRecording(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.workers[guildID]
	return ok && reg.recording
}

// Active reports whether a worker is registered for the guild.
func (s *Supervisor) Active(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[guildID]
	return ok
}

// RetryPending reports whether a crash restart is scheduled for the guild.
func (s *Supervisor) RetryPending(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.retries[guildID]
	return ok
}
