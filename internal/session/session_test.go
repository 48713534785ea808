package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"volo/internal/audio"
	"volo/internal/logging"
	"volo/internal/recording"
	"volo/internal/session"
)

type fakeExporter struct {
	mu         sync.Mutex
	concats    map[string][]string
	mixes      [][]string
	failConc   map[string]bool
	failMix    bool
	mixBitrate string
}

func (f *fakeExporter) ConcatToTrack(_ context.Context, chunks []string, out, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.concats == nil {
		f.concats = map[string][]string{}
	}
	f.concats[filepath.Base(out)] = chunks
	if f.failConc[filepath.Base(out)] {
		return errors.New("ffmpeg exited with code 1")
	}
	return os.WriteFile(out, []byte("track"), 0o644)
}

func (f *fakeExporter) MixToTrack(_ context.Context, inputs []string, out, bitrate string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mixes = append(f.mixes, inputs)
	f.mixBitrate = bitrate
	if f.failMix {
		return errors.New("ffmpeg exited with code 1")
	}
	return os.WriteFile(out, []byte("mixed"), 0o644)
}

func newManager(t *testing.T, exporter session.AudioExporter) *session.Manager {
	t.Helper()
	store := recording.NewStore(filepath.Join(t.TempDir(), "sessions"), time.UTC)
	return session.NewManager(store, exporter, session.Options{}, logging.NewNop())
}

func writeChunk(t *testing.T, s *recording.Session, speaker string, seq int) {
	t.Helper()
	path := s.ChunkPath(speaker, seq)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	mgr := newManager(t, &fakeExporter{})
	ctx := context.Background()

	s, err := mgr.Start(ctx, "g1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := mgr.Start(ctx, "g1"); !errors.Is(err, session.ErrAlreadyActive) {
		t.Fatalf("second Start: expected ErrAlreadyActive, got %v", err)
	}
	if _, err := mgr.Start(ctx, "g2"); err != nil {
		t.Fatalf("other guild Start: %v", err)
	}
	if got := mgr.ActiveGuilds(); len(got) != 2 || got[0] != "g1" || got[1] != "g2" {
		t.Fatalf("ActiveGuilds = %v", got)
	}
	if active, ok := mgr.Get("g1"); !ok || active != s {
		t.Fatal("Get returned a different session")
	}

	stopped, err := mgr.Stop(ctx, "g1")
	if err != nil || stopped != s {
		t.Fatalf("Stop = %v, %v", stopped, err)
	}
	if _, err := mgr.Stop(ctx, "g1"); !errors.Is(err, session.ErrNoActiveSession) {
		t.Fatalf("second Stop: expected ErrNoActiveSession, got %v", err)
	}
	if _, err := mgr.Start(ctx, "g1"); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
}

func TestConcurrentStartsYieldOneSession(t *testing.T) {
	mgr := newManager(t, &fakeExporter{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Start(context.Background(), "g")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, session.ErrAlreadyActive):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || conflicts != 15 {
		t.Fatalf("successes=%d conflicts=%d", successes, conflicts)
	}
}

func TestFinalizeWithoutAudioKeepsTranscript(t *testing.T) {
	exporter := &fakeExporter{}
	mgr := newManager(t, exporter)
	ctx := context.Background()
	s, err := mgr.Start(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	s.AppendLine("[00:00] Alice: hello")
	if _, err := mgr.Stop(ctx, "g"); err != nil {
		t.Fatal(err)
	}

	result, err := mgr.Finalize(ctx, s)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.ExportErr != nil {
		t.Fatalf("no audio must not be an export error: %v", result.ExportErr)
	}
	if len(result.Tracks) != 0 || result.MixedPath != "" || len(exporter.mixes) != 0 {
		t.Fatalf("expected no audio artifacts: %+v", result)
	}
	if got := session.Artifacts(s); len(got) != 1 || got[0] != s.TranscriptPath() {
		t.Fatalf("Artifacts = %v", got)
	}

	if _, err := mgr.Finalize(ctx, s); !errors.Is(err, session.ErrAlreadyFinalized) {
		t.Fatalf("second Finalize: expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestFinalizeExportsTracksAndMix(t *testing.T) {
	exporter := &fakeExporter{}
	mgr := newManager(t, exporter)
	ctx := context.Background()
	s, err := mgr.Start(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	writeChunk(t, s, "2", 2)
	writeChunk(t, s, "1", 1)
	writeChunk(t, s, "1", 3)
	s.SetDisplayName("1", "Alice Smith")

	result, err := mgr.Finalize(ctx, s)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.ExportErr != nil {
		t.Fatalf("ExportErr: %v", result.ExportErr)
	}
	alice := s.TrackPath("1", "Alice Smith")
	speaker2 := s.TrackPath("2", "2")
	if len(result.Tracks) != 2 || result.Tracks[0] != alice || result.Tracks[1] != speaker2 {
		t.Fatalf("tracks = %v", result.Tracks)
	}
	if chunks := exporter.concats["user_1_Alice_Smith.ogg"]; len(chunks) != 2 || chunks[0] != s.ChunkPath("1", 1) || chunks[1] != s.ChunkPath("1", 3) {
		t.Fatalf("alice chunks = %v", chunks)
	}
	if result.MixedPath != s.MixedPath() || exporter.mixBitrate != "48k" {
		t.Fatalf("mixed = %q bitrate=%q", result.MixedPath, exporter.mixBitrate)
	}

	want := []string{s.TranscriptPath(), s.MixedPath(), alice, speaker2}
	got := session.Artifacts(s)
	if len(got) != len(want) {
		t.Fatalf("Artifacts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Artifacts = %v, want %v", got, want)
		}
	}
}

func TestFinalizeSingleTrackStillMixes(t *testing.T) {
	exporter := &fakeExporter{}
	mgr := newManager(t, exporter)
	s, err := mgr.Start(context.Background(), "g")
	if err != nil {
		t.Fatal(err)
	}
	writeChunk(t, s, "1", 1)

	result, err := mgr.Finalize(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if len(exporter.mixes) != 1 || len(exporter.mixes[0]) != 1 || result.MixedPath == "" {
		t.Fatalf("expected single-input mix, mixes=%v", exporter.mixes)
	}
}

func TestFinalizeExportFailureIsSoft(t *testing.T) {
	exporter := &fakeExporter{failConc: map[string]bool{"user_1_1.ogg": true}}
	mgr := newManager(t, exporter)
	s, err := mgr.Start(context.Background(), "g")
	if err != nil {
		t.Fatal(err)
	}
	s.AppendLine("[00:00] 1: hi")
	writeChunk(t, s, "1", 1)
	writeChunk(t, s, "2", 2)

	result, err := mgr.Finalize(context.Background(), s)
	if err != nil {
		t.Fatalf("Finalize must not fail on export errors: %v", err)
	}
	if result.ExportErr == nil {
		t.Fatal("expected ExportErr")
	}
	if len(result.Tracks) != 1 || result.Tracks[0] != s.TrackPath("2", "2") {
		t.Fatalf("other speakers must still export: %v", result.Tracks)
	}
	if _, err := os.Stat(result.TranscriptPath); err != nil {
		t.Fatalf("transcript missing: %v", err)
	}
}

func TestFinalizeMixFailureDropsMixedPath(t *testing.T) {
	exporter := &fakeExporter{failMix: true}
	mgr := newManager(t, exporter)
	s, err := mgr.Start(context.Background(), "g")
	if err != nil {
		t.Fatal(err)
	}
	writeChunk(t, s, "1", 1)
	writeChunk(t, s, "2", 2)

	result, err := mgr.Finalize(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExportErr == nil || result.MixedPath != "" {
		t.Fatalf("expected mix failure reported, got %+v", result)
	}
	if got := session.Artifacts(s); len(got) != 3 {
		t.Fatalf("artifacts without mixed track = %v", got)
	}
}

func TestFinalizeFailedMixLeavesNoMixedArtifact(t *testing.T) {
	exporter := audio.NewExporter("ffmpeg", logging.NewNop())
	exporter.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("OggS"), 0o644); err != nil {
			return err
		}
		if filepath.Base(out) == "mixed.ogg" {
			return errors.New("ffmpeg exited with code 1")
		}
		return nil
	})
	mgr := newManager(t, exporter)
	s, err := mgr.Start(context.Background(), "g")
	if err != nil {
		t.Fatal(err)
	}
	writeChunk(t, s, "1", 1)
	writeChunk(t, s, "2", 2)

	result, err := mgr.Finalize(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExportErr == nil || result.MixedPath != "" {
		t.Fatalf("expected mix failure reported, got %+v", result)
	}
	for _, path := range result.Artifacts {
		if path == s.MixedPath() {
			t.Fatalf("truncated mix offered for delivery: %v", result.Artifacts)
		}
	}
	if _, err := os.Stat(s.MixedPath()); !os.IsNotExist(err) {
		t.Fatalf("truncated mix left on disk, stat err=%v", err)
	}
}
