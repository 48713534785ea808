package daemonrun

import (
	"context"
	"log/slog"

	"volo/internal/bot"
	"volo/internal/delivery"
	"volo/internal/history"
	"volo/internal/logging"
	"volo/internal/session"
)

// historyObserver writes bot lifecycle milestones to the session index.
type historyObserver struct {
	bot.NopObserver
	store  *history.Store
	logger *slog.Logger
}

func newHistoryObserver(store *history.Store, logger *slog.Logger) *historyObserver {
	return &historyObserver{store: store, logger: logging.NewComponentLogger(logger, "history")}
}

func (o *historyObserver) SessionStarted(ctx context.Context, info bot.SessionInfo) {
	o.check(ctx, "start", o.store.RecordStart(ctx, history.Start{
		SessionID: info.SessionID,
		GuildID:   info.GuildID,
		ChannelID: info.ChannelID,
		RootDir:   info.RootDir,
		StartedAt: info.StartedAt,
	}))
}

func (o *historyObserver) SessionStopped(ctx context.Context, info bot.SessionInfo, lines int) {
	o.check(ctx, "stop", o.store.RecordStop(ctx, info.SessionID, lines))
}

func (o *historyObserver) SessionFinalized(ctx context.Context, info bot.SessionInfo, result session.FinalizeResult) {
	f := history.Finalization{
		Tracks: len(result.Tracks),
		Mixed:  result.MixedPath != "",
	}
	// Lines were counted at stop; finalize keeps them.
	if rec, err := o.store.Get(ctx, info.SessionID); err == nil && rec != nil {
		f.Lines = rec.Lines
	}
	if result.ExportErr != nil {
		f.ExportError = result.ExportErr.Error()
	}
	o.check(ctx, "finalize", o.store.RecordFinalize(ctx, info.SessionID, f))
}

func (o *historyObserver) SessionDelivered(ctx context.Context, info bot.SessionInfo, report delivery.Report) {
	o.check(ctx, "delivery", o.store.RecordDelivery(ctx, info.SessionID, report.Outcome(), len(report.Failed)))
}

func (o *historyObserver) check(ctx context.Context, step string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "session history update failed", "history_update_failed",
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldImpact, "volo sessions list may show stale data"),
		logging.String(logging.FieldErrorHint, "check that the history database is writable"),
	)
}
