package bot

import (
	"context"
	"time"

	"volo/internal/delivery"
	"volo/internal/recording"
	"volo/internal/session"
)

// SessionInfo identifies a recording session for observers.
type SessionInfo struct {
	GuildID   string
	ChannelID string
	SessionID string
	RootDir   string
	StartedAt time.Time
}

func infoFor(s *recording.Session, channelID string) SessionInfo {
	return SessionInfo{
		GuildID:   s.GuildID,
		ChannelID: channelID,
		SessionID: s.ID,
		RootDir:   s.RootDir,
		StartedAt: s.StartedAt,
	}
}

// Observer receives session lifecycle milestones. Implementations must not
// block for long; they run on the command path.
type Observer interface {
	SessionStarted(ctx context.Context, info SessionInfo)
	SessionStopped(ctx context.Context, info SessionInfo, lines int)
	SessionFinalized(ctx context.Context, info SessionInfo, result session.FinalizeResult)
	SessionDelivered(ctx context.Context, info SessionInfo, report delivery.Report)
	WorkerCrashed(ctx context.Context, guildID string, attempt int, err error)
}

// NopObserver ignores every milestone. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) SessionStarted(context.Context, SessionInfo)                          {}
func (NopObserver) SessionStopped(context.Context, SessionInfo, int)                     {}
func (NopObserver) SessionFinalized(context.Context, SessionInfo, session.FinalizeResult) {}
func (NopObserver) SessionDelivered(context.Context, SessionInfo, delivery.Report)       {}
func (NopObserver) WorkerCrashed(context.Context, string, int, error)                    {}

// Observers fans milestones out in order.
type Observers []Observer

func (o Observers) SessionStarted(ctx context.Context, info SessionInfo) {
	for _, ob := range o {
		ob.SessionStarted(ctx, info)
	}
}

func (o Observers) SessionStopped(ctx context.Context, info SessionInfo, lines int) {
	for _, ob := range o {
		ob.SessionStopped(ctx, info, lines)
	}
}

func (o Observers) SessionFinalized(ctx context.Context, info SessionInfo, result session.FinalizeResult) {
	for _, ob := range o {
		ob.SessionFinalized(ctx, info, result)
	}
}

func (o Observers) SessionDelivered(ctx context.Context, info SessionInfo, report delivery.Report) {
	for _, ob := range o {
		ob.SessionDelivered(ctx, info, report)
	}
}

func (o Observers) WorkerCrashed(ctx context.Context, guildID string, attempt int, err error) {
	for _, ob := range o {
		ob.WorkerCrashed(ctx, guildID, attempt, err)
	}
}
