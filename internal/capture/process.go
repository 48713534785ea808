package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"volo/internal/logging"
)

const frameBuffer = 512

// ProcessOptions configures the transcriber sidecar.
type ProcessOptions struct {
	Command     string
	Args        []string
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// NewProcessFactory returns a Factory that runs one sidecar process per guild.
func NewProcessFactory(opts ProcessOptions) Factory {
	return func(guildID string, queue *Queue, cfg WorkerConfig) (Worker, error) {
		if strings.TrimSpace(opts.Command) == "" {
			return nil, errors.New("capture command not configured")
		}
		timeout := opts.StopTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return &ProcessWorker{
			guildID:     guildID,
			command:     opts.Command,
			args:        append([]string(nil), opts.Args...),
			stopTimeout: timeout,
			queue:       queue,
			cfg:         cfg,
			logger:      logging.NewComponentLogger(opts.Logger, "capture").With(logging.Guild(guildID)),
			out:         make(chan any, frameBuffer),
			quit:        make(chan struct{}),
			done:        make(chan struct{}),
		}, nil
	}
}

// ProcessWorker speaks newline-delimited JSON with an external transcriber:
// config and audio messages go to its stdin, utterances come back on stdout.
type ProcessWorker struct {
	guildID     string
	command     string
	args        []string
	stopTimeout time.Duration
	queue       *Queue
	logger      *slog.Logger

	cfgMu sync.Mutex
	cfg   WorkerConfig

	cmd *exec.Cmd

	sendMu      sync.RWMutex
	inputClosed bool
	out         chan any
	// quit is closed when Stop begins and releases blocked senders.
	quit chan struct{}

	done     chan struct{}
	launched atomic.Bool
	started  atomic.Bool
	stopping atomic.Bool
	dropped  atomic.Int64

	failMu     sync.Mutex
	failReason string
}

// Start launches the sidecar and sends the initial config.
func (w *ProcessWorker) Start(onFailure func(error)) error {
	if !w.launched.CompareAndSwap(false, true) {
		return errors.New("capture worker already started")
	}
	cmd := exec.Command(w.command, w.args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("capture stdin: %w", err)
	}
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	// Bounds how long Wait keeps copying output from grandchildren that
	// inherited the pipes after the sidecar itself exited.
	cmd.WaitDelay = w.stopTimeout
	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return fmt.Errorf("start capture worker %s: %w", w.command, err)
	}
	w.cmd = cmd
	w.started.Store(true)
	w.logger.Info("capture worker started",
		logging.String("command", w.command),
		logging.Int("pid", cmd.Process.Pid),
		logging.String(logging.FieldEventType, "capture_worker_started"),
	)

	w.cfgMu.Lock()
	initial := newConfigMessage(w.cfg)
	w.cfgMu.Unlock()
	w.send(initial, false)

	go w.writeLoop(stdin)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		w.readLoop(stdoutR)
	}()
	go func() {
		defer readers.Done()
		w.stderrLoop(stderrR)
	}()

	go func() {
		waitErr := cmd.Wait()
		_ = stdoutW.Close()
		_ = stderrW.Close()
		readers.Wait()
		close(w.done)
		w.closeInput()
		w.handleExit(waitErr, onFailure)
	}()
	return nil
}

// WriteFrame forwards a voice packet. Packets are dropped rather than
// blocking the voice receiver when the sidecar falls behind.
func (w *ProcessWorker) WriteFrame(frame Frame) {
	if w.stopping.Load() {
		return
	}
	w.send(newAudioMessage(frame), true)
}

// SetLanguage re-sends the config with the new language.
func (w *ProcessWorker) SetLanguage(language string) error {
	w.cfgMu.Lock()
	w.cfg.Language = language
	msg := newConfigMessage(w.cfg)
	w.cfgMu.Unlock()
	if !w.started.Load() {
		return nil
	}
	if !w.send(msg, false) {
		return errors.New("capture worker input closed")
	}
	return nil
}

// Stop asks the sidecar to finish and waits for it to exit so every pending
// utterance reaches the queue. Queueing the stop message and waiting for the
// exit share one stop timeout; after it the process is killed.
func (w *ProcessWorker) Stop() {
	if !w.started.Load() {
		return
	}
	timer := time.NewTimer(w.stopTimeout)
	defer timer.Stop()

	expired := false
	if w.stopping.CompareAndSwap(false, true) {
		close(w.quit)
		expired = !w.offer(stopMessage{Type: msgStop}, timer.C)
		w.closeInput()
	}
	if !expired {
		select {
		case <-w.done:
			return
		case <-timer.C:
		}
	}
	logging.WarnWithContext(w.logger, "capture worker did not stop in time; killing", "capture_worker_stop_timeout",
		logging.Duration("timeout", w.stopTimeout),
		logging.Int("pending_messages", len(w.out)),
		logging.String(logging.FieldImpact, "utterances still in flight are lost"),
		logging.String(logging.FieldErrorHint, "the transcriber stopped reading its input; check its log"),
	)
	w.kill()
	<-w.done
}

// Close stops the sidecar if it is still running.
func (w *ProcessWorker) Close() error {
	if !w.started.Load() {
		return nil
	}
	w.Stop()
	if n := w.dropped.Load(); n > 0 {
		logging.WarnWithContext(w.logger, "voice packets dropped while worker was busy", "capture_frames_dropped",
			logging.Int64("dropped", n),
			logging.String(logging.FieldImpact, "short gaps in transcription"),
			logging.String(logging.FieldErrorHint, "check transcriber performance"),
		)
	}
	return nil
}

func (w *ProcessWorker) send(msg any, drop bool) bool {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.inputClosed {
		return false
	}
	if drop {
		select {
		case w.out <- msg:
			return true
		default:
			w.dropped.Add(1)
			return false
		}
	}
	select {
	case w.out <- msg:
		return true
	case <-w.quit:
		return false
	case <-w.done:
		return false
	}
}

// offer queues msg unless the input is closed or the process exited. It
// returns false only when expire fires first.
func (w *ProcessWorker) offer(msg any, expire <-chan time.Time) bool {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.inputClosed {
		return true
	}
	select {
	case w.out <- msg:
	case <-w.done:
	case <-expire:
		return false
	}
	return true
}

func (w *ProcessWorker) closeInput() {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if !w.inputClosed {
		w.inputClosed = true
		close(w.out)
	}
}

func (w *ProcessWorker) writeLoop(stdin io.WriteCloser) {
	defer stdin.Close()
	enc := json.NewEncoder(stdin)
	for msg := range w.out {
		if err := enc.Encode(msg); err != nil {
			if !w.stopping.Load() {
				w.logger.Debug("capture worker input write failed", logging.Error(err))
			}
			for range w.out {
			}
			return
		}
	}
}

func (w *ProcessWorker) readLoop(stdout io.Reader) {
	reader := bufio.NewReaderSize(stdout, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			item, failure := parseLine(line)
			if failure != "" {
				w.fail(failure)
			} else if item != nil {
				w.queue.Push(item)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !w.stopping.Load() {
				w.fail(fmt.Sprintf("read output: %v", err))
			}
			return
		}
	}
}

func (w *ProcessWorker) stderrLoop(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			w.logger.Debug("capture worker stderr", logging.String("line", text))
		}
	}
}

// fail records the first fatal reason and terminates the process.
func (w *ProcessWorker) fail(reason string) {
	w.failMu.Lock()
	if w.failReason == "" {
		w.failReason = reason
	}
	w.failMu.Unlock()
	w.kill()
}

func (w *ProcessWorker) kill() {
	if w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
}

func (w *ProcessWorker) handleExit(waitErr error, onFailure func(error)) {
	w.failMu.Lock()
	reason := w.failReason
	w.failMu.Unlock()

	if w.stopping.Load() && reason == "" {
		w.logger.Info("capture worker stopped",
			logging.String(logging.FieldEventType, "capture_worker_stopped"),
		)
		return
	}
	if reason == "" {
		if waitErr != nil {
			reason = waitErr.Error()
		} else {
			reason = "exited unexpectedly"
		}
	}
	err := fmt.Errorf("%w: %s", ErrWorkerCrashed, reason)
	if onFailure != nil {
		onFailure(err)
	}
}
