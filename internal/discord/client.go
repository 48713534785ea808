package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"volo/internal/bot"
	"volo/internal/delivery"
	"volo/internal/logging"
	"volo/internal/services"
)

const component = "discord"

// Handler receives commands and voice events.
type Handler interface {
	Handle(ctx context.Context, name string, req bot.Request, r bot.Responder) error
	VoiceLeft(ctx context.Context, guildID string)
}

// Options configures the gateway client.
type Options struct {
	Token string
	// GuildIDs scopes command registration; empty registers globally.
	GuildIDs   []string
	StatusText string
}

// Client adapts a discordgo session to the bot Platform.
type Client struct {
	session *discordgo.Session
	opts    Options
	logger  *slog.Logger
	ready   atomic.Bool

	mu       sync.Mutex
	handler  Handler
	voices   map[string]*voiceConn
	removers []func()
}

// New constructs a client. The gateway is not contacted until Open.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "bot token is empty", nil)
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "create session", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers
	return &Client{
		session: session,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, component),
		voices:  make(map[string]*voiceConn),
	}, nil
}

// SetHandler installs the command handler. Interactions that arrive before a
// handler is set are ignored.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Client) currentHandler() Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

// Open connects to the gateway.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	c.removers = append(c.removers,
		c.session.AddHandler(c.onReady),
		c.session.AddHandler(c.onResumed),
		c.session.AddHandler(c.onDisconnect),
		c.session.AddHandler(c.onInteraction),
		c.session.AddHandler(c.onVoiceState),
	)
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.session.Open(); err != nil {
		return services.Wrap(services.ErrTransient, component, "open", "connect to gateway", err)
	}
	c.logger.Info("gateway connection opened", logging.String(logging.FieldEventType, "gateway_opened"))
	return nil
}

// Close leaves all voice channels and closes the gateway connection.
func (c *Client) Close() error {
	c.ready.Store(false)
	c.mu.Lock()
	removers := c.removers
	c.removers = nil
	voices := c.voices
	c.voices = make(map[string]*voiceConn)
	c.mu.Unlock()
	for _, remove := range removers {
		remove()
	}
	for _, v := range voices {
		_ = v.Disconnect(context.Background())
	}
	if err := c.session.Close(); err != nil {
		return services.Wrap(services.ErrTransient, component, "close", "close gateway", err)
	}
	return nil
}

func (c *Client) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := r.User.ID
	if r.Application != nil && r.Application.ID != "" {
		appID = r.Application.ID
	}
	c.logger.Info("logged in",
		logging.String("user", r.User.Username),
		logging.Int("guilds", len(r.Guilds)),
		logging.String(logging.FieldEventType, "gateway_ready"),
	)
	if err := c.registerCommands(appID); err != nil {
		logging.ErrorWithContext(c.logger, "command registration failed", "command_registration_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bot's applications.commands scope"),
		)
	}
	if text := strings.TrimSpace(c.opts.StatusText); text != "" {
		if err := s.UpdateGameStatus(0, text); err != nil {
			c.logger.Debug("status update failed", logging.Error(err))
		}
	}
	c.ready.Store(true)
}

func (c *Client) onResumed(*discordgo.Session, *discordgo.Resumed) {
	c.ready.Store(true)
}

func (c *Client) onDisconnect(*discordgo.Session, *discordgo.Disconnect) {
	c.ready.Store(false)
	c.logger.Warn("gateway disconnected",
		logging.String(logging.FieldEventType, "gateway_disconnected"),
		logging.String(logging.FieldImpact, "commands are unavailable until the session reconnects"),
		logging.String(logging.FieldErrorHint, "discordgo reconnects automatically; check network connectivity if this repeats"),
	)
}

func (c *Client) registerCommands(appID string) error {
	commands := applicationCommands(bot.Commands())
	scopes := c.opts.GuildIDs
	if len(scopes) == 0 {
		scopes = []string{""}
	}
	var errs []error
	for _, guildID := range scopes {
		if _, err := c.session.ApplicationCommandBulkOverwrite(appID, guildID, commands); err != nil {
			errs = append(errs, fmt.Errorf("guild %q: %w", guildID, err))
			continue
		}
		c.logger.Debug("commands registered", logging.Guild(guildID), logging.Int("count", len(commands)))
	}
	return errors.Join(errs...)
}

func (c *Client) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	handler := c.currentHandler()
	if handler == nil {
		return
	}
	name, req := requestFromInteraction(i.Interaction)
	ctx := services.WithRequestID(context.Background(), uuid.NewString())
	responder := newResponder(s, i.Interaction)
	if err := handler.Handle(ctx, name, req, responder); err != nil {
		hint := services.Hint(err)
		if hint == "" {
			hint = "check earlier entries with the same correlation_id"
		}
		logging.WithContext(services.WithGuildID(ctx, req.GuildID), c.logger).Warn("command failed",
			logging.String("command", name),
			logging.Error(err),
			logging.Bool("retryable", services.Retryable(err)),
			logging.String(logging.FieldEventType, "command_failed"),
			logging.String(logging.FieldImpact, "the user got no answer"),
			logging.String(logging.FieldErrorHint, hint),
		)
	}
}

func (c *Client) onVoiceState(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || s.State == nil || s.State.User == nil || vs.UserID != s.State.User.ID {
		return
	}
	if vs.ChannelID != "" {
		return
	}
	c.mu.Lock()
	_, known := c.voices[vs.GuildID]
	delete(c.voices, vs.GuildID)
	c.mu.Unlock()
	if !known {
		return
	}
	if handler := c.currentHandler(); handler != nil {
		handler.VoiceLeft(context.Background(), vs.GuildID)
	}
}

// Ready reports whether the gateway session is established.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// UserVoiceChannel returns the voice channel the user is connected to.
func (c *Client) UserVoiceChannel(_ context.Context, guildID, userID string) (string, bool) {
	vs, err := c.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// JoinVoice joins a voice channel self-muted and ready to receive audio.
func (c *Client) JoinVoice(_ context.Context, guildID, channelID string) (bot.VoiceConn, error) {
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "join voice", "channel "+channelID, err)
	}
	conn := newVoiceConn(vc, c.logger)
	conn.release = func() { c.forgetVoice(guildID, conn) }
	c.mu.Lock()
	c.voices[guildID] = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *Client) forgetVoice(guildID string, conn *voiceConn) {
	c.mu.Lock()
	if c.voices[guildID] == conn {
		delete(c.voices, guildID)
	}
	c.mu.Unlock()
}

// GuildMembers lists every member of the guild.
func (c *Client) GuildMembers(ctx context.Context, guildID string) ([]bot.Member, error) {
	const pageSize = 1000
	var out []bot.Member
	after := ""
	for {
		page, err := c.session.GuildMembers(guildID, after, pageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, component, "list members", "guild "+guildID, err)
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			out = append(out, bot.Member{
				ID:          m.User.ID,
				Username:    m.User.Username,
				DisplayName: memberDisplayName(m),
				Bot:         m.User.Bot,
			})
		}
		if len(page) < pageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// Channel returns a text channel for artifact delivery.
func (c *Client) Channel(channelID string) delivery.Channel {
	return &textChannel{session: c.session, channelID: channelID}
}

// DisplayName resolves a member's display name from the gateway state, then
// the API, falling back to the user id.
func (c *Client) DisplayName(ctx context.Context, guildID, userID string) string {
	if m, err := c.session.State.Member(guildID, userID); err == nil && m != nil {
		if name := memberDisplayName(m); name != "" {
			return name
		}
	}
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		c.logger.Debug("member lookup failed", logging.Guild(guildID), logging.String("user_id", userID), logging.Error(err))
		return userID
	}
	if name := memberDisplayName(m); name != "" {
		return name
	}
	return userID
}

func memberDisplayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if nick := strings.TrimSpace(m.Nick); nick != "" {
		return nick
	}
	if m.User == nil {
		return ""
	}
	if global := strings.TrimSpace(m.User.GlobalName); global != "" {
		return global
	}
	return strings.TrimSpace(m.User.Username)
}

func requestFromInteraction(i *discordgo.Interaction) (string, bot.Request) {
	data := i.ApplicationCommandData()
	req := bot.Request{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Options:   make(map[string]string, len(data.Options)),
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		req.UserID = i.Member.User.ID
	case i.User != nil:
		req.UserID = i.User.ID
	}
	for _, opt := range data.Options {
		if opt == nil {
			continue
		}
		if value, ok := opt.Value.(string); ok {
			req.Options[opt.Name] = value
		} else if opt.Value != nil {
			req.Options[opt.Name] = fmt.Sprint(opt.Value)
		}
	}
	return data.Name, req
}

func applicationCommands(commands []bot.Command) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(commands))
	for _, cmd := range commands {
		appCmd := &discordgo.ApplicationCommand{
			Name:        cmd.Name,
			Description: cmd.Description,
		}
		for _, opt := range cmd.Options {
			option := &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			}
			for _, choice := range opt.Choices {
				option.Choices = append(option.Choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
			}
			appCmd.Options = append(appCmd.Options, option)
		}
		out = append(out, appCmd)
	}
	return out
}
