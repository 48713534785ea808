package recording

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"volo/internal/capture"
	"volo/internal/logging"
	"volo/internal/textutil"
)

// NameResolver looks up the display name for a speaker in a guild.
type NameResolver interface {
	DisplayName(ctx context.Context, guildID, userID string) string
}

// NameResolverFunc adapts a function to NameResolver.
type NameResolverFunc func(ctx context.Context, guildID, userID string) string

// DisplayName calls f.
func (f NameResolverFunc) DisplayName(ctx context.Context, guildID, userID string) string {
	return f(ctx, guildID, userID)
}

// Assembler turns capture output into transcript lines and chunk files.
type Assembler struct {
	chunkDuration time.Duration
	resolver      NameResolver
	logger        *slog.Logger
}

// NewAssembler constructs an assembler. A nil resolver names speakers by id.
func NewAssembler(chunkDuration time.Duration, resolver NameResolver, logger *slog.Logger) *Assembler {
	return &Assembler{
		chunkDuration: chunkDuration,
		resolver:      resolver,
		logger:        logging.NewComponentLogger(logger, "transcript"),
	}
}

// Drain processes every item currently queued and returns the text produced,
// one entry per transcript line or raw value, in arrival order. It never
// waits for new items. Items that cannot be processed are logged and skipped
// without aborting the drain.
func (a *Assembler) Drain(ctx context.Context, queue *capture.Queue, session *Session) []string {
	var out []string
	for {
		item, ok := queue.TryPop()
		if !ok {
			return out
		}
		switch v := item.(type) {
		case capture.Utterance:
			if line, ok := a.processUtterance(ctx, session, v); ok {
				out = append(out, line)
			}
		case capture.Raw:
			if text := strings.TrimSpace(string(v)); text != "" {
				out = append(out, text)
			}
		default:
			logging.WarnWithContext(a.logger, "unrecognised capture item dropped", "capture_item_dropped",
				logging.Session(session.ID),
				logging.String("item_type", fmt.Sprintf("%T", item)),
				logging.String(logging.FieldImpact, "item not added to transcript"),
			)
		}
	}
}

func (a *Assembler) processUtterance(ctx context.Context, session *Session, u capture.Utterance) (string, bool) {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return "", false
	}
	speaker := strings.TrimSpace(u.SpeakerID)
	if speaker == "" || textutil.SafeFileName(speaker) != speaker {
		logging.WarnWithContext(a.logger, "utterance without usable speaker id dropped", "utterance_dropped",
			logging.Session(session.ID),
			logging.String("speaker_id", u.SpeakerID),
			logging.String(logging.FieldImpact, "utterance not added to transcript"),
			logging.String(logging.FieldErrorHint, "check the capture worker output format"),
		)
		return "", false
	}

	seq := session.NextChunk()
	name := a.resolveName(ctx, session.GuildID, speaker)
	session.SetDisplayName(speaker, name)

	if u.Audio != "" {
		a.persistChunk(session, speaker, seq, u.Audio)
	}

	offset := time.Duration(seq-1) * a.chunkDuration
	line := fmt.Sprintf("[%s] %s: %s", FormatTimestamp(offset), name, text)
	session.AppendLine(line)
	return line, true
}

func (a *Assembler) resolveName(ctx context.Context, guildID, speaker string) string {
	if a.resolver == nil {
		return speaker
	}
	if name := strings.TrimSpace(a.resolver.DisplayName(ctx, guildID, speaker)); name != "" {
		return name
	}
	return speaker
}

func (a *Assembler) persistChunk(session *Session, speaker string, seq int, encoded string) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logging.WarnWithContext(a.logger, "chunk audio not decodable; audio skipped", "chunk_decode_failed",
			logging.Session(session.ID),
			logging.String("speaker_id", speaker),
			logging.Int("chunk", seq),
			logging.Error(err),
			logging.String(logging.FieldImpact, "speaker track will miss this chunk"),
		)
		return
	}
	if err := os.MkdirAll(session.SpeakerChunkDir(speaker), 0o755); err != nil {
		a.chunkWriteFailed(session, speaker, seq, err)
		return
	}
	path := session.ChunkPath(speaker, seq)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.chunkWriteFailed(session, speaker, seq, err)
		return
	}
	a.logger.Debug("chunk written",
		logging.Session(session.ID),
		logging.String("speaker_id", speaker),
		logging.String("path", path),
		logging.Int("bytes", len(data)),
	)
}

func (a *Assembler) chunkWriteFailed(session *Session, speaker string, seq int, err error) {
	logging.ErrorWithContext(a.logger, "chunk write failed", "chunk_write_failed",
		logging.Session(session.ID),
		logging.String("speaker_id", speaker),
		logging.Int("chunk", seq),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions of sessions_dir"),
	)
}

// FormatTimestamp renders an offset as mm:ss, or hh:mm:ss from one hour on.
func FormatTimestamp(offset time.Duration) string {
	if offset < 0 {
		offset = 0
	}
	total := int(offset / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
