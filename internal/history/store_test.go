package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"volo/internal/history"
	"volo/internal/testsupport"
)

func TestLifecycleIsRecorded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if filepath.Dir(store.Path()) != cfg.Paths.SessionsDir {
		t.Fatalf("database at %s, want inside %s", store.Path(), cfg.Paths.SessionsDir)
	}

	started := time.Date(2026, 3, 14, 18, 30, 5, 0, time.UTC)
	if err := store.RecordStart(ctx, history.Start{
		SessionID: "2026-03-14_19-30-05",
		GuildID:   "g1",
		ChannelID: "c1",
		RootDir:   "/data/sessions/2026-03-14_19-30-05",
		StartedAt: started,
	}); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if err := store.RecordStop(ctx, "2026-03-14_19-30-05", 12); err != nil {
		t.Fatalf("RecordStop: %v", err)
	}
	if err := store.RecordFinalize(ctx, "2026-03-14_19-30-05", history.Finalization{Lines: 12, Tracks: 3, Mixed: true, ExportError: ""}); err != nil {
		t.Fatalf("RecordFinalize: %v", err)
	}
	if err := store.RecordDelivery(ctx, "2026-03-14_19-30-05", "bundle", 2); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}

	rec, err := store.Get(ctx, "2026-03-14_19-30-05")
	if err != nil || rec == nil {
		t.Fatalf("Get: %v %v", rec, err)
	}
	if rec.Status != history.StatusDelivered || rec.Lines != 12 || rec.Tracks != 3 || !rec.Mixed {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.DeliveryOutcome != "bundle" || rec.FailedUploads != 2 || rec.ExportError != "" {
		t.Fatalf("unexpected delivery fields %+v", rec)
	}
	if !rec.StartedAt.Equal(started) || rec.StoppedAt.IsZero() || rec.FinalizedAt.IsZero() || rec.DeliveredAt.IsZero() {
		t.Fatalf("unexpected timestamps %+v", rec)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil record for unknown id, got %v %v", missing, err)
	}
	if err := store.RecordStop(ctx, "nope", 1); !errors.Is(err, history.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestListOrdersNewestFirstAndFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []struct {
		id    string
		guild string
		at    time.Time
	}{
		{"a", "g1", base},
		{"b", "g2", base.Add(time.Hour)},
		{"c", "g1", base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		if err := store.RecordStart(ctx, history.Start{SessionID: e.id, GuildID: e.guild, RootDir: "/x/" + e.id, StartedAt: e.at}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].SessionID != "c" || all[2].SessionID != "a" {
		t.Fatalf("unexpected order: %v", ids(all))
	}
	g1, err := store.List(ctx, "g1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(g1) != 1 || g1[0].SessionID != "c" {
		t.Fatalf("unexpected filtered list: %v", ids(g1))
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[history.StatusRecording] != 3 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RecordStart(context.Background(), history.Start{SessionID: "s1", GuildID: "g", RootDir: "/x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	rec, err := reopened.Get(context.Background(), "s1")
	if err != nil || rec == nil {
		t.Fatalf("record lost after reopen: %v %v", rec, err)
	}
}

func ids(records []*history.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.SessionID)
	}
	return out
}
