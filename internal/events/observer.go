package events

import (
	"context"
	"log/slog"
	"path/filepath"

	"volo/internal/bot"
	"volo/internal/delivery"
	"volo/internal/logging"
	"volo/internal/session"
)

// Observer forwards bot milestones as lifecycle events.
type Observer struct {
	publisher *Publisher
	logger    *slog.Logger
}

var _ bot.Observer = (*Observer)(nil)

// NewObserver wraps a publisher for the bot.
func NewObserver(p *Publisher, logger *slog.Logger) *Observer {
	return &Observer{publisher: p, logger: logging.NewComponentLogger(logger, "events")}
}

func base(t Type, info bot.SessionInfo) Event {
	return Event{
		Type:      t,
		GuildID:   info.GuildID,
		SessionID: info.SessionID,
		ChannelID: info.ChannelID,
	}
}

func (o *Observer) SessionStarted(ctx context.Context, info bot.SessionInfo) {
	ev := base(TypeSessionStarted, info)
	ev.OccurredAt = info.StartedAt.UTC()
	o.publish(ctx, ev)
}

func (o *Observer) SessionStopped(ctx context.Context, info bot.SessionInfo, lines int) {
	ev := base(TypeSessionStopped, info)
	ev.Lines = lines
	o.publish(ctx, ev)
}

func (o *Observer) SessionFinalized(ctx context.Context, info bot.SessionInfo, result session.FinalizeResult) {
	ev := base(TypeSessionFinalized, info)
	ev.Tracks = len(result.Tracks)
	ev.Mixed = result.MixedPath != ""
	for _, path := range result.Artifacts {
		ev.Artifacts = append(ev.Artifacts, filepath.Base(path))
	}
	if result.ExportErr != nil {
		ev.ExportError = result.ExportErr.Error()
	}
	o.publish(ctx, ev)
}

func (o *Observer) SessionDelivered(ctx context.Context, info bot.SessionInfo, report delivery.Report) {
	ev := base(TypeSessionDelivered, info)
	ev.DeliveryOutcome = report.Outcome()
	ev.FailedUploads = len(report.Failed)
	o.publish(ctx, ev)
}

func (o *Observer) WorkerCrashed(ctx context.Context, guildID string, attempt int, err error) {
	ev := Event{Type: TypeWorkerCrashed, GuildID: guildID, Attempt: attempt}
	if err != nil {
		ev.Error = err.Error()
	}
	o.publish(ctx, ev)
}

func (o *Observer) publish(ctx context.Context, ev Event) {
	if err := o.publisher.Publish(ctx, ev); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "lifecycle event not published", "event_publish_failed",
			logging.String("type", string(ev.Type)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "downstream consumers miss this milestone"),
			logging.String(logging.FieldErrorHint, "check events.brokers and that the topic accepts writes"),
		)
	}
}
