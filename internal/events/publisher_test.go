package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"volo/internal/bot"
	"volo/internal/config"
	"volo/internal/delivery"
	"volo/internal/events"
	"volo/internal/logging"
	"volo/internal/session"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func decode(t *testing.T, msg kafka.Message) events.Event {
	t.Helper()
	var ev events.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestPublisherWithoutBrokersDiscards(t *testing.T) {
	p := events.NewPublisher(config.Events{Topic: "volo.sessions"})
	if p.Enabled() {
		t.Fatal("expected publisher without brokers to be disabled")
	}
	if err := p.Publish(context.Background(), events.Event{Type: events.TypeSessionStarted}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublisherWritesKeyedEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := events.NewPublisherWithWriter(w, time.Second)

	if err := p.Publish(context.Background(), events.Event{Type: events.TypeSessionStopped, GuildID: "42", SessionID: "s1", Lines: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "42" {
		t.Fatalf("expected guild key, got %q", msg.Key)
	}
	if !w.deadline {
		t.Fatal("expected write timeout to bound the context")
	}
	ev := decode(t, msg)
	if ev.ID == "" || ev.Source != "volo" || ev.OccurredAt.IsZero() {
		t.Fatalf("envelope not filled: %+v", ev)
	}
	if ev.Type != events.TypeSessionStopped || ev.Lines != 7 || ev.SessionID != "s1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	var headerType string
	for _, h := range msg.Headers {
		if h.Key == "type" {
			headerType = string(h.Value)
		}
	}
	if headerType != "session.stopped" {
		t.Fatalf("expected type header, got %q", headerType)
	}
}

func TestPublisherRejectsMissingGuild(t *testing.T) {
	p := events.NewPublisherWithWriter(&fakeWriter{}, 0)
	if err := p.Publish(context.Background(), events.Event{Type: events.TypeWorkerCrashed}); err == nil {
		t.Fatal("expected error for event without guild id")
	}
}

func TestObserverPublishesLifecycle(t *testing.T) {
	w := &fakeWriter{}
	obs := events.NewObserver(events.NewPublisherWithWriter(w, 0), logging.NewNop())
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	info := bot.SessionInfo{GuildID: "g", ChannelID: "c", SessionID: "s", RootDir: "/data/s", StartedAt: started}

	obs.SessionStarted(ctx, info)
	obs.SessionStopped(ctx, info, 3)
	obs.SessionFinalized(ctx, info, session.FinalizeResult{
		Tracks:    []string{"/data/s/audio/user_1_A.ogg"},
		MixedPath: "/data/s/audio/mixed.ogg",
		Artifacts: []string{"/data/s/transcript.md", "/data/s/audio/mixed.ogg"},
		ExportErr: errors.New("partial"),
	})
	obs.SessionDelivered(ctx, info, delivery.Report{Uploaded: []string{"a"}, Failed: []string{"b"}})
	obs.WorkerCrashed(ctx, "g", 2, errors.New("exit status 1"))

	if len(w.messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(w.messages))
	}
	got := make([]events.Event, 0, len(w.messages))
	for _, msg := range w.messages {
		got = append(got, decode(t, msg))
	}
	wantTypes := []events.Type{
		events.TypeSessionStarted,
		events.TypeSessionStopped,
		events.TypeSessionFinalized,
		events.TypeSessionDelivered,
		events.TypeWorkerCrashed,
	}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, got[i].Type)
		}
	}
	if !got[0].OccurredAt.Equal(started) {
		t.Fatalf("expected start time %v, got %v", started, got[0].OccurredAt)
	}
	fin := got[2]
	if fin.Tracks != 1 || !fin.Mixed || fin.ExportError != "partial" || len(fin.Artifacts) != 2 || fin.Artifacts[0] != "transcript.md" {
		t.Fatalf("unexpected finalized event %+v", fin)
	}
	if got[3].DeliveryOutcome != "local" || got[3].FailedUploads != 1 {
		t.Fatalf("unexpected delivered event %+v", got[3])
	}
	if got[4].Attempt != 2 || got[4].Error != "exit status 1" {
		t.Fatalf("unexpected crash event %+v", got[4])
	}
}

func TestObserverSwallowsWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	obs := events.NewObserver(events.NewPublisherWithWriter(w, 0), logging.NewNop())
	obs.SessionStopped(context.Background(), bot.SessionInfo{GuildID: "g", SessionID: "s"}, 1)
	if len(w.messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(w.messages))
	}
}
