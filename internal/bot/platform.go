package bot

import (
	"context"
	"strings"

	"volo/internal/capture"
	"volo/internal/delivery"
)

// VoiceConn is a joined voice channel.
type VoiceConn interface {
	capture.Voice
	ChannelID() string
	Disconnect(ctx context.Context) error
}

// Member is a guild member as seen by the player map refresh.
type Member struct {
	ID          string
	Username    string
	DisplayName string
	Bot         bool
}

// Platform is the chat client the bot drives.
type Platform interface {
	// Ready reports whether the gateway session is established.
	Ready() bool
	// UserVoiceChannel returns the voice channel the user is connected to.
	UserVoiceChannel(ctx context.Context, guildID, userID string) (string, bool)
	JoinVoice(ctx context.Context, guildID, channelID string) (VoiceConn, error)
	GuildMembers(ctx context.Context, guildID string) ([]Member, error)
	// Channel returns a text channel that accepts artifacts.
	Channel(channelID string) delivery.Channel
}

// Request carries one command invocation.
type Request struct {
	GuildID   string
	ChannelID string
	UserID    string
	Options   map[string]string
}

// Option returns a trimmed command option value.
func (r Request) Option(name string) string {
	return strings.TrimSpace(r.Options[name])
}

// Reply is a command response.
type Reply struct {
	Content   string
	Ephemeral bool
	Files     []string
}

// Responder answers a command invocation. Defer acknowledges a command whose
// reply follows later; Respond may be called after Defer.
type Responder interface {
	Defer(ctx context.Context, ephemeral bool) error
	Respond(ctx context.Context, reply Reply) error
}
