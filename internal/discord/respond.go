package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"volo/internal/bot"
	"volo/internal/delivery"
	"volo/internal/services"
)

// maxContentRunes is the message length limit of the chat API.
const maxContentRunes = 2000

func truncateContent(content string) string {
	if utf8.RuneCountInString(content) <= maxContentRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxContentRunes-1]) + "…"
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// openFiles opens attachments; the returned closer releases all of them.
func openFiles(paths []string) ([]*discordgo.File, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	files := make([]*discordgo.File, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open attachment: %w", err)
		}
		closers = append(closers, f)
		files = append(files, &discordgo.File{
			Name:        filepath.Base(path),
			ContentType: contentType(path),
			Reader:      f,
		})
	}
	return files, closeAll, nil
}

// responder answers one interaction, editing the deferred response when the
// command acknowledged first.
type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	deferred    bool
}

var _ bot.Responder = (*responder)(nil)

func newResponder(s *discordgo.Session, i *discordgo.Interaction) *responder {
	return &responder{session: s, interaction: i}
}

func (r *responder) Defer(ctx context.Context, ephemeral bool) error {
	if r.deferred {
		return nil
	}
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := r.session.InteractionRespond(r.interaction, resp, discordgo.WithContext(ctx)); err != nil {
		return services.Wrap(services.ErrTransient, component, "defer", "acknowledge interaction", err)
	}
	r.deferred = true
	return nil
}

func (r *responder) Respond(ctx context.Context, reply bot.Reply) error {
	files, closeFiles, err := openFiles(reply.Files)
	if err != nil {
		return err
	}
	defer closeFiles()
	content := truncateContent(reply.Content)

	if r.deferred {
		edit := &discordgo.WebhookEdit{Content: &content, Files: files}
		if _, err := r.session.InteractionResponseEdit(r.interaction, edit, discordgo.WithContext(ctx)); err != nil {
			return services.Wrap(services.ErrTransient, component, "respond", "edit deferred response", err)
		}
		return nil
	}
	data := &discordgo.InteractionResponseData{Content: content, Files: files}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
	if err := r.session.InteractionRespond(r.interaction, resp, discordgo.WithContext(ctx)); err != nil {
		return services.Wrap(services.ErrTransient, component, "respond", "send response", err)
	}
	return nil
}

// textChannel posts messages and artifacts to a guild text channel.
type textChannel struct {
	session   *discordgo.Session
	channelID string
}

var _ delivery.Channel = (*textChannel)(nil)

func (c *textChannel) SendFile(ctx context.Context, path, caption string) error {
	files, closeFiles, err := openFiles([]string{path})
	if err != nil {
		return err
	}
	defer closeFiles()
	msg := &discordgo.MessageSend{Content: truncateContent(caption), Files: files}
	if _, err := c.session.ChannelMessageSendComplex(c.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return services.Wrap(services.ErrTransient, component, "send file", filepath.Base(path), err)
	}
	return nil
}

func (c *textChannel) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("empty message")
	}
	if _, err := c.session.ChannelMessageSend(c.channelID, truncateContent(text), discordgo.WithContext(ctx)); err != nil {
		return services.Wrap(services.ErrTransient, component, "send message", "channel "+c.channelID, err)
	}
	return nil
}
