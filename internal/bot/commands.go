package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"volo/internal/capture"
	"volo/internal/language"
	"volo/internal/logging"
	"volo/internal/playermap"
	"volo/internal/services"
	"volo/internal/session"
)

// Command names.
const (
	CmdConnect         = "connect"
	CmdDisconnect      = "disconnect"
	CmdStartRecording  = "start_recording"
	CmdStopRecording   = "stop_recording"
	CmdLanguage        = "language"
	CmdTranscript      = "transcript"
	CmdUpdatePlayerMap = "update_player_map"
	CmdHelp            = "help"
)

// CommandOption is a string option of a command.
type CommandOption struct {
	Name        string
	Description string
	Required    bool
	Choices     []string
}

// Command describes a slash command for registration.
type Command struct {
	Name        string
	Description string
	Options     []CommandOption
}

// Commands lists the commands the bot handles, in help order.
func Commands() []Command {
	return []Command{
		{Name: CmdConnect, Description: "Connect VOLO to your voice channel."},
		{Name: CmdDisconnect, Description: "Disconnect VOLO from your voice channel."},
		{Name: CmdStartRecording, Description: "Start recording and transcribing the voice channel."},
		{Name: CmdStopRecording, Description: "Stop the recording and post the session files."},
		{Name: CmdLanguage, Description: "Set the transcription language.", Options: []CommandOption{{
			Name:        "language",
			Description: "Language spoken in the channel",
			Required:    true,
			Choices:     []string{"auto", "de", "eng"},
		}}},
		{Name: CmdTranscript, Description: "Post the transcript of the running session."},
		{Name: CmdUpdatePlayerMap, Description: "Refresh the player map from the server members."},
		{Name: CmdHelp, Description: "Show the help message."},
	}
}

// HelpText renders the command overview.
func HelpText() string {
	var b strings.Builder
	b.WriteString("**VOLO Help**\nAvailable commands:\n")
	for _, cmd := range Commands() {
		fmt.Fprintf(&b, "`/%s` %s\n", cmd.Name, cmd.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Handle runs a command and answers through r. Unknown commands return an
// error without replying.
func (b *Bot) Handle(ctx context.Context, name string, req Request, r Responder) error {
	ctx = services.WithGuildID(ctx, req.GuildID)
	logging.WithContext(ctx, b.logger).Debug("command received",
		logging.String("command", name),
		logging.String("user_id", req.UserID),
		logging.String("channel_id", req.ChannelID),
	)
	if name == CmdHelp {
		return r.Respond(ctx, Reply{Content: HelpText(), Ephemeral: true})
	}
	if req.GuildID == "" {
		return r.Respond(ctx, Reply{Content: "Commands only work inside a server.", Ephemeral: true})
	}
	switch name {
	case CmdConnect:
		return b.connect(ctx, req, r)
	case CmdDisconnect:
		return b.disconnect(ctx, req, r)
	case CmdStartRecording:
		return b.startRecording(ctx, req, r)
	case CmdStopRecording:
		return b.stopRecording(ctx, req, r)
	case CmdLanguage:
		return b.setLanguage(ctx, req, r)
	case CmdTranscript:
		return b.transcript(ctx, req, r)
	case CmdUpdatePlayerMap:
		return b.updatePlayerMap(ctx, req, r)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func ephemeral(ctx context.Context, r Responder, content string) error {
	return r.Respond(ctx, Reply{Content: content, Ephemeral: true})
}

func (b *Bot) connect(ctx context.Context, req Request, r Responder) error {
	if !b.platform.Ready() {
		return ephemeral(ctx, r, "Bot is not ready yet. Please try again shortly.")
	}
	channelID, ok := b.platform.UserVoiceChannel(ctx, req.GuildID, req.UserID)
	if !ok {
		return ephemeral(ctx, r, "You need to join a voice channel first.")
	}
	g := b.guild(req.GuildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voice != nil {
		return ephemeral(ctx, r, "I am already connected in this server.")
	}
	if err := r.Defer(ctx, false); err != nil {
		return err
	}
	conn, err := b.platform.JoinVoice(ctx, req.GuildID, channelID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, b.logger), "voice join failed", "voice_join_failed",
			logging.String("channel_id", channelID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "recording is unavailable in this guild"),
			logging.String(logging.FieldErrorHint, "check the bot's Connect permission for the channel"),
		)
		return r.Respond(ctx, Reply{Content: fmt.Sprintf("Unable to connect: %v", err)})
	}
	g.voice = conn
	logging.WithContext(ctx, b.logger).Info("voice connected",
		logging.String("channel_id", channelID),
		logging.String(logging.FieldEventType, "voice_connected"),
	)
	return r.Respond(ctx, Reply{Content: "Connected to your voice channel."})
}

func (b *Bot) disconnect(ctx context.Context, req Request, r Responder) error {
	g := b.guild(req.GuildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voice == nil {
		return ephemeral(ctx, r, "I am not connected in this server.")
	}
	if err := r.Defer(ctx, false); err != nil {
		return err
	}
	var f finished
	if g.recording {
		f = b.finishRecording(ctx, req.GuildID, g)
	}
	b.supervisor.Close(req.GuildID)
	g.queue = nil
	if err := g.voice.Disconnect(ctx); err != nil {
		b.logger.Warn("voice disconnect failed",
			logging.Guild(req.GuildID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "voice_disconnect_failed"),
			logging.String(logging.FieldImpact, "voice state may be stale until the gateway reconnects"),
			logging.String(logging.FieldErrorHint, "use /connect again if the bot still appears in the channel"),
		)
	}
	g.voice = nil

	content := "Disconnected from voice channel."
	if f.session != nil {
		content = f.message() + "\n" + content
	}
	if err := r.Respond(ctx, Reply{Content: content}); err != nil {
		b.logger.Debug("disconnect reply failed", logging.Error(err))
	}
	b.deliver(ctx, f, req.ChannelID)
	return nil
}

func (b *Bot) startRecording(ctx context.Context, req Request, r Responder) error {
	g := b.guild(req.GuildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voice == nil {
		return ephemeral(ctx, r, "I am not connected. Use `/connect` first.")
	}
	if g.recording {
		return ephemeral(ctx, r, "Recording is already running.")
	}

	s, err := b.sessions.Start(ctx, req.GuildID)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyActive) {
			return ephemeral(ctx, r, "Recording is already running.")
		}
		return r.Respond(ctx, Reply{Content: fmt.Sprintf("Unable to start recording: %v", err)})
	}
	ctx = services.WithSessionID(ctx, s.ID)

	g.queue = capture.NewQueue()
	if err := b.supervisor.Start(req.GuildID, g.voice, g.queue, b.workerConfig(g.language)); err != nil {
		b.rollbackStart(ctx, req.GuildID, g, err)
		return r.Respond(ctx, Reply{Content: fmt.Sprintf("Unable to start the transcriber: %v", err)})
	}
	g.recording = true
	g.channelID = req.ChannelID
	b.startDrain(req.GuildID, g)

	b.observer.SessionStarted(ctx, infoFor(s, req.ChannelID))
	return r.Respond(ctx, Reply{Content: fmt.Sprintf("Recording started. Session: `%s`", s.ID)})
}

// rollbackStart undoes a session whose worker never started. The empty
// session is still finalized so its directory is consistent.
func (b *Bot) rollbackStart(ctx context.Context, guildID string, g *guildState, cause error) {
	logger := logging.WithContext(ctx, b.logger)
	logging.ErrorWithContext(logger, "capture worker failed to start", "capture_start_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check [capture] command in the config and run 'volo status'"),
	)
	b.supervisor.Close(guildID)
	g.queue = nil
	s, err := b.sessions.Stop(ctx, guildID)
	if err != nil {
		return
	}
	if _, err := b.sessions.Finalize(ctx, s); err != nil {
		logger.Debug("rollback finalize failed", logging.Error(err))
	}
}

func (b *Bot) stopRecording(ctx context.Context, req Request, r Responder) error {
	g := b.guild(req.GuildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voice == nil {
		return ephemeral(ctx, r, "I am not connected to your voice channel.")
	}
	if !g.recording {
		return ephemeral(ctx, r, "No active recording is running.")
	}
	if err := r.Defer(ctx, false); err != nil {
		return err
	}
	defer func() {
		b.supervisor.Close(req.GuildID)
		g.queue = nil
	}()

	f := b.finishRecording(ctx, req.GuildID, g)
	if err := r.Respond(ctx, Reply{Content: f.message()}); err != nil {
		b.logger.Debug("stop reply failed", logging.Error(err))
	}
	b.deliver(ctx, f, req.ChannelID)
	return nil
}

func (b *Bot) setLanguage(ctx context.Context, req Request, r Responder) error {
	value := req.Option("language")
	code, err := language.NormalizeTranscription(value)
	if err != nil {
		return ephemeral(ctx, r, fmt.Sprintf("Unsupported language `%s`. Choose auto, de or eng.", value))
	}
	g := b.guild(req.GuildID)
	g.mu.Lock()
	g.language = code
	g.mu.Unlock()
	b.supervisor.SetLanguage(req.GuildID, code)
	logging.WithContext(ctx, b.logger).Info("transcription language set",
		logging.String("language", code),
		logging.String(logging.FieldEventType, "language_set"),
	)
	content := fmt.Sprintf("Transcription language set to `%s`.", language.DisplayTranscription(code))
	if name := language.Name(code); name != "" {
		content = fmt.Sprintf("Transcription language set to `%s` (%s).", language.DisplayTranscription(code), name)
	}
	return r.Respond(ctx, Reply{Content: content})
}

func (b *Bot) transcript(ctx context.Context, req Request, r Responder) error {
	g := b.guild(req.GuildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.voice == nil {
		return ephemeral(ctx, r, "I am not connected to your voice channel.")
	}
	s, ok := b.sessions.Get(req.GuildID)
	if !ok {
		return ephemeral(ctx, r, "No active recording is running.")
	}
	drained := b.assembler.Drain(ctx, g.queue, s)
	lines := len(s.Lines())
	if lines == 0 {
		return ephemeral(ctx, r, "No transcription data available yet.")
	}
	path, err := s.WriteTranscript()
	if err != nil {
		return r.Respond(ctx, Reply{Content: fmt.Sprintf("Unable to write the transcript: %v", err), Ephemeral: true})
	}
	content := fmt.Sprintf("Transcript so far for session `%s`: %d lines, %d new.", s.ID, lines, len(drained))
	return r.Respond(ctx, Reply{Content: content, Files: []string{path}})
}

func (b *Bot) updatePlayerMap(ctx context.Context, req Request, r Responder) error {
	g := b.guild(req.GuildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recording {
		return ephemeral(ctx, r, "Cannot update player map while recording.")
	}
	if err := r.Defer(ctx, true); err != nil {
		return err
	}
	members, err := b.platform.GuildMembers(ctx, req.GuildID)
	if err != nil {
		return r.Respond(ctx, Reply{Content: fmt.Sprintf("Unable to update the player map:\n%v", err), Ephemeral: true})
	}
	entries := make(playermap.Map, len(members))
	for _, m := range members {
		if m.Bot || m.ID == "" {
			continue
		}
		entries[m.ID] = playermap.Entry{Player: m.Username, Character: m.DisplayName}
	}
	merged, err := b.players.Update(entries)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, b.logger), "player map update failed", "player_map_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcriber keeps the previous player names"),
			logging.String(logging.FieldErrorHint, "check that player_map_file is writable"),
		)
		return r.Respond(ctx, Reply{Content: fmt.Sprintf("Unable to update the player map:\n%v", err), Ephemeral: true})
	}
	logging.WithContext(ctx, b.logger).Info("player map updated",
		logging.Int("members", len(entries)),
		logging.Int("entries", len(merged)),
		logging.String("path", b.players.Path()),
		logging.String(logging.FieldEventType, "player_map_updated"),
	)
	return r.Respond(ctx, Reply{Content: "Player map updated.", Ephemeral: true})
}
