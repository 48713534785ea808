package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"volo/internal/capture"
	"volo/internal/delivery"
	"volo/internal/logging"
	"volo/internal/playermap"
	"volo/internal/recording"
	"volo/internal/services"
	"volo/internal/session"
)

const defaultDrainInterval = 5 * time.Second

// Options holds capture defaults applied to every guild.
type Options struct {
	Language      string
	Method        string
	DataLength    int
	MaxSpeakers   int
	DrainInterval time.Duration
}

// Dependencies wires the bot to the recording pipeline.
type Dependencies struct {
	Platform   Platform
	Sessions   *session.Manager
	Supervisor *capture.Supervisor
	Assembler  *recording.Assembler
	Deliverer  *delivery.Deliverer
	Players    *playermap.Store
	Observer   Observer
	Logger     *slog.Logger
}

// guildState is the per-guild recording state. mu serializes commands for the
// guild and the periodic drain.
type guildState struct {
	mu        sync.Mutex
	voice     VoiceConn
	queue     *capture.Queue
	language  string
	recording bool
	channelID string
}

// Bot implements the slash commands on top of the session pipeline.
type Bot struct {
	opts       Options
	platform   Platform
	sessions   *session.Manager
	supervisor *capture.Supervisor
	assembler  *recording.Assembler
	deliverer  *delivery.Deliverer
	players    *playermap.Store
	observer   Observer
	logger     *slog.Logger

	mu     sync.Mutex
	guilds map[string]*guildState
}

// New constructs a bot and registers its crash hook on the supervisor.
func New(opts Options, deps Dependencies) (*Bot, error) {
	if deps.Platform == nil || deps.Sessions == nil || deps.Supervisor == nil || deps.Assembler == nil || deps.Deliverer == nil {
		return nil, errors.New("bot: platform, sessions, supervisor, assembler and deliverer are required")
	}
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = defaultDrainInterval
	}
	if opts.Language == "" {
		opts.Language = "auto"
	}
	players := deps.Players
	if players == nil {
		players, _ = playermap.OpenStore("")
	}
	observer := deps.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	b := &Bot{
		opts:       opts,
		platform:   deps.Platform,
		sessions:   deps.Sessions,
		supervisor: deps.Supervisor,
		assembler:  deps.Assembler,
		deliverer:  deps.Deliverer,
		players:    players,
		observer:   observer,
		logger:     logging.NewComponentLogger(deps.Logger, "bot"),
		guilds:     make(map[string]*guildState),
	}
	b.supervisor.OnCrash(func(guildID string, attempt int, err error) {
		ctx := services.WithGuildID(context.Background(), guildID)
		b.observer.WorkerCrashed(ctx, guildID, attempt, err)
	})
	return b, nil
}

func (b *Bot) guild(id string) *guildState {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.guilds[id]
	if !ok {
		g = &guildState{language: b.opts.Language}
		b.guilds[id] = g
	}
	return g
}

func (b *Bot) guildIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.guilds))
	for id := range b.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Connected reports whether the bot holds a voice connection in the guild.
func (b *Bot) Connected(guildID string) bool {
	g := b.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.voice != nil
}

// Recording reports whether the guild is recording.
func (b *Bot) Recording(guildID string) bool {
	g := b.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recording
}

// Language returns the guild's transcription language.
func (b *Bot) Language(guildID string) string {
	g := b.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.language
}

func (b *Bot) workerConfig(language string) capture.WorkerConfig {
	return capture.WorkerConfig{
		Language:    language,
		Method:      b.opts.Method,
		DataLength:  b.opts.DataLength,
		MaxSpeakers: b.opts.MaxSpeakers,
		PlayerMap:   b.players.Snapshot(),
	}
}

// startDrain launches the periodic drain for the guild and hands its cancel
// function to the supervisor.
func (b *Bot) startDrain(guildID string, g *guildState) {
	ctx, cancel := context.WithCancel(services.WithGuildID(context.Background(), guildID))
	go b.drainLoop(ctx, guildID, g)
	b.supervisor.AttachTask(guildID, cancel)
}

func (b *Bot) drainLoop(ctx context.Context, guildID string, g *guildState) {
	ticker := time.NewTicker(b.opts.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		g.mu.Lock()
		if ctx.Err() != nil {
			g.mu.Unlock()
			return
		}
		if s, ok := b.sessions.Get(guildID); ok && g.queue != nil {
			texts := b.assembler.Drain(ctx, g.queue, s)
			if len(texts) > 0 {
				b.logger.Debug("transcript drained",
					logging.Guild(guildID),
					logging.Session(s.ID),
					logging.Int("items", len(texts)),
					logging.Int("lines", len(s.Lines())),
				)
			}
		}
		g.mu.Unlock()
	}
}

// finished is the outcome of stopping and finalizing a guild's session.
type finished struct {
	session *recording.Session
	info    SessionInfo
	result  session.FinalizeResult
	err     error
}

func (f finished) message() string {
	switch {
	case f.session == nil:
		return "Recording stopped."
	case f.err != nil:
		return fmt.Sprintf("Recording stopped, but the transcript for `%s` could not be written: %v", f.session.ID, f.err)
	case f.result.ExportErr != nil:
		return fmt.Sprintf("Recording stopped. Transcript saved, but audio export failed for `%s`.", f.session.ID)
	default:
		return fmt.Sprintf("Recording stopped. Session `%s` saved under `%s`.", f.session.ID, f.session.RootDir)
	}
}

// finishRecording stops capture and finalizes the guild's session. The queue
// is drained before and after the supervisor stops the worker so output that
// arrives during the stop lands in the transcript. The caller holds g.mu and
// closes the worker afterwards.
func (b *Bot) finishRecording(ctx context.Context, guildID string, g *guildState) finished {
	if s, ok := b.sessions.Get(guildID); ok {
		b.assembler.Drain(ctx, g.queue, s)
	}
	b.supervisor.Stop(guildID)
	if s, ok := b.sessions.Get(guildID); ok {
		b.assembler.Drain(ctx, g.queue, s)
	}
	g.recording = false

	s, err := b.sessions.Stop(ctx, guildID)
	if err != nil {
		if !errors.Is(err, session.ErrNoActiveSession) {
			b.logger.Error("session stop failed", logging.Guild(guildID), logging.Error(err))
		}
		return finished{}
	}
	info := infoFor(s, g.channelID)
	ctx = services.WithSessionID(ctx, s.ID)
	b.observer.SessionStopped(ctx, info, len(s.Lines()))

	result, err := b.sessions.Finalize(ctx, s)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, b.logger), "session finalize failed", "session_finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the sessions directory is writable"),
		)
		result.Artifacts = session.Artifacts(s)
	}
	return finished{session: s, info: info, result: result, err: err}
}

// deliver posts the artifacts of a finished session and notifies observers.
func (b *Bot) deliver(ctx context.Context, f finished, channelID string) {
	if f.session == nil {
		return
	}
	ctx = services.WithSessionID(ctx, f.session.ID)
	b.observer.SessionFinalized(ctx, f.info, f.result)
	if channelID == "" {
		b.logger.Warn("no channel for artifact delivery",
			logging.Session(f.session.ID),
			logging.String(logging.FieldEventType, "delivery_skipped"),
			logging.String(logging.FieldImpact, "artifacts stay on disk"),
			logging.String(logging.FieldErrorHint, "run 'volo sessions deliver "+f.session.ID+"'"),
		)
		return
	}
	report := b.deliverer.Deliver(ctx, b.platform.Channel(channelID), f.session.ID, f.session.RootDir, f.result.Artifacts)
	b.observer.SessionDelivered(ctx, f.info, report)
}

// VoiceLeft handles the bot being removed from a voice channel by someone
// else. A running recording is finalized and delivered to the channel it was
// started from.
func (b *Bot) VoiceLeft(ctx context.Context, guildID string) {
	g := b.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voice == nil && !g.recording {
		return
	}
	ctx = services.WithGuildID(ctx, guildID)
	b.logger.Info("voice connection lost",
		logging.Guild(guildID),
		logging.Bool("recording", g.recording),
		logging.String(logging.FieldEventType, "voice_left"),
	)
	g.voice = nil
	var f finished
	if g.recording {
		f = b.finishRecording(ctx, guildID, g)
	}
	b.supervisor.Close(guildID)
	g.queue = nil
	b.deliver(ctx, f, g.channelID)
}

// Shutdown stops every recording, finalizes the sessions and leaves all voice
// channels. Artifacts are not delivered.
func (b *Bot) Shutdown(ctx context.Context) {
	for _, guildID := range b.guildIDs() {
		g := b.guild(guildID)
		g.mu.Lock()
		gctx := services.WithGuildID(ctx, guildID)
		if g.recording {
			f := b.finishRecording(gctx, guildID, g)
			if f.session != nil {
				b.observer.SessionFinalized(services.WithSessionID(gctx, f.session.ID), f.info, f.result)
			}
		}
		b.supervisor.Close(guildID)
		g.queue = nil
		if g.voice != nil {
			if err := g.voice.Disconnect(gctx); err != nil {
				b.logger.Debug("voice disconnect failed", logging.Guild(guildID), logging.Error(err))
			}
			g.voice = nil
		}
		g.mu.Unlock()
	}
	b.supervisor.CloseAll()
	b.logger.Info("bot shutdown complete", logging.String(logging.FieldEventType, "bot_shutdown"))
}
