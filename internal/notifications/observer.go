package notifications

import (
	"context"
	"log/slog"

	"volo/internal/bot"
	"volo/internal/delivery"
	"volo/internal/logging"
	"volo/internal/session"
)

// Observer turns bot milestones into notifications.
type Observer struct {
	bot.NopObserver
	svc    Service
	logger *slog.Logger
}

// NewObserver wraps a Service for the bot.
func NewObserver(svc Service, logger *slog.Logger) *Observer {
	return &Observer{svc: svc, logger: logging.NewComponentLogger(logger, "notifications")}
}

func (o *Observer) SessionStarted(ctx context.Context, info bot.SessionInfo) {
	o.publish(ctx, EventSessionStarted, Payload{
		"sessionID": info.SessionID,
		"guildID":   info.GuildID,
	})
}

func (o *Observer) SessionFinalized(ctx context.Context, info bot.SessionInfo, result session.FinalizeResult) {
	payload := Payload{
		"sessionID": info.SessionID,
		"tracks":    len(result.Tracks),
	}
	if result.ExportErr != nil {
		payload["exportError"] = result.ExportErr.Error()
	}
	o.publish(ctx, EventSessionFinalized, payload)
}

func (o *Observer) SessionDelivered(ctx context.Context, info bot.SessionInfo, report delivery.Report) {
	if len(report.Failed) == 0 {
		return
	}
	o.publish(ctx, EventDeliveryFallback, Payload{
		"sessionID": info.SessionID,
		"failed":    len(report.Failed),
		"outcome":   report.Outcome(),
		"rootDir":   info.RootDir,
	})
}

func (o *Observer) WorkerCrashed(ctx context.Context, guildID string, attempt int, err error) {
	o.publish(ctx, EventWorkerCrashed, Payload{
		"guildID": guildID,
		"attempt": attempt,
		"error":   err,
	})
}

func (o *Observer) publish(ctx context.Context, event Event, payload Payload) {
	if err := o.svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "push notification was not delivered"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
		)
	}
}
