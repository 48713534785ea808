package archive

import (
	"context"
	"log/slog"

	"volo/internal/bot"
	"volo/internal/logging"
	"volo/internal/session"
)

// Observer archives artifacts once a session is finalized.
type Observer struct {
	bot.NopObserver
	archiver *Archiver
	logger   *slog.Logger
}

// NewObserver wraps an archiver for the bot.
func NewObserver(a *Archiver, logger *slog.Logger) *Observer {
	return &Observer{archiver: a, logger: logging.NewComponentLogger(logger, component)}
}

func (o *Observer) SessionFinalized(ctx context.Context, info bot.SessionInfo, result session.FinalizeResult) {
	logger := logging.WithContext(ctx, o.logger).With(logging.Session(info.SessionID))
	keys, err := o.archiver.Upload(ctx, info.GuildID, info.SessionID, info.RootDir, result.Artifacts)
	if err != nil {
		logging.WarnWithContext(logger, "session archive incomplete", "archive_failed",
			logging.Int("archived", len(keys)),
			logging.Int("artifacts", len(result.Artifacts)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "local files are intact but the bucket copy is missing files"),
			logging.String(logging.FieldErrorHint, "check archive.endpoint credentials and bucket permissions"),
		)
		return
	}
	if len(keys) > 0 {
		logger.Info("session archived",
			logging.Int("objects", len(keys)),
			logging.String(logging.FieldEventType, "session_archived"),
		)
	}
}
