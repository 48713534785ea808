package daemonrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"volo/internal/bot"
	"volo/internal/delivery"
	"volo/internal/logging"
	"volo/internal/session"
	"volo/internal/testsupport"
)

func TestHistoryObserverRecordsLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	info := bot.SessionInfo{GuildID: "g1", ChannelID: "c1", SessionID: "s1", RootDir: "/x/s1", StartedAt: time.Now()}

	var observer bot.Observer = newHistoryObserver(store, logging.NewNop())
	observer.SessionStarted(ctx, info)
	observer.SessionStopped(ctx, info, 4)
	observer.SessionFinalized(ctx, info, session.FinalizeResult{
		Tracks:    []string{"/x/s1/tracks/user_1_a.ogg"},
		ExportErr: errors.New("mix failed"),
	})
	observer.SessionDelivered(ctx, info, delivery.Report{Uploaded: []string{"transcript.md"}})

	got, err := store.Get(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}
	if got.Lines != 4 || got.Tracks != 1 || got.Mixed || got.ExportError != "mix failed" || got.DeliveryOutcome != "uploaded" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestHistoryObserverIgnoresUnknownSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	observer := newHistoryObserver(store, logging.NewNop())

	observer.SessionStopped(context.Background(), bot.SessionInfo{SessionID: "missing"}, 2)

	rec, err := store.Get(context.Background(), "missing")
	if err != nil || rec != nil {
		t.Fatalf("expected no record, got %+v %v", rec, err)
	}
}
