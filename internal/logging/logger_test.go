package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"volo/internal/config"
	"volo/internal/logging"
	"volo/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesJSONToStderr(t *testing.T) {
	stderr, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatal(err)
	}
	saved := os.Stderr
	os.Stderr = stderr
	t.Cleanup(func() { os.Stderr = saved })

	cfg := config.Default()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Debug("session started", logging.Session("2026-01-02_03-04-05"), logging.Int("chunks", 3))
	os.Stderr = saved

	data, err := os.ReadFile(stderr.Name())
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	if entry["msg"] != "session started" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["level"] != "debug" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
	if entry[logging.FieldSessionID] != "2026-01-02_03-04-05" {
		t.Fatalf("unexpected session id: %v", entry[logging.FieldSessionID])
	}
	ts, _ := entry["ts"].(string)
	if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", ts); err != nil {
		t.Fatalf("ts %q is not UTC with milliseconds: %v", ts, err)
	}
	if src, _ := entry["source"].(string); !strings.HasPrefix(src, "logger_test.go:") {
		t.Fatalf("expected short source at debug level, got %v", entry["source"])
	}
}

func TestNewFromConfigNilDefaultsToInfo(t *testing.T) {
	logger, err := logging.NewFromConfig(nil)
	if err != nil {
		t.Fatalf("NewFromConfig(nil): %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled without config")
	}
}

func TestConsoleLoggerPrefixesComponentAndSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "recording")
	logger.Info("chunk written", logging.Session("abc"), logging.String("speaker", "42"))
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "recording[abc]: chunk written") {
		t.Fatalf("expected component/session prefix, got %q", out)
	}
	if !strings.Contains(out, "speaker") {
		t.Fatalf("expected speaker attribute, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered at info level: %q", out)
	}
}

func TestWithContextAddsIdentifiers(t *testing.T) {
	ctx := services.WithGuildID(context.Background(), "g1")
	ctx = services.WithSessionID(ctx, "s1")
	ctx = services.WithRequestID(ctx, "r1")

	fields := logging.ContextFields(ctx)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}
	want := map[string]string{
		logging.FieldGuildID:       "g1",
		logging.FieldSessionID:     "s1",
		logging.FieldCorrelationID: "r1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s = %q, want %q", k, got[k], v)
		}
	}
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatal("expected no fields for empty context")
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slogJSON(&buf)
	logging.WarnWithContext(logger, "mix skipped", "mix_skipped", logging.String(logging.FieldImpact, "no mixed track"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "mix_skipped" {
		t.Fatalf("event_type = %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldImpact] != "no mixed track" {
		t.Fatalf("impact overwritten: %v", entry[logging.FieldImpact])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
}

func TestPruneRunLogsKeepsActiveAndRecentLogs(t *testing.T) {
	dir := t.TempDir()
	expired := filepath.Join(dir, "volo-20260101T000000.000Z.log")
	recent := filepath.Join(dir, "volo-20260301T000000.000Z.log")
	active := filepath.Join(dir, "volo-20260102T000000.000Z.log")
	unrelated := filepath.Join(dir, "ffmpeg-report.log")
	for _, p := range []string{expired, recent, active, unrelated} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{expired, active, unrelated} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	if n := logging.PruneRunLogs(logging.NewNop(), dir, 3, active); n != 1 {
		t.Fatalf("pruned %d logs, want 1", n)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Fatalf("expected expired run log removed, stat err=%v", err)
	}
	for _, p := range []string{recent, active, unrelated} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
}

func TestPruneRunLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "volo-old.log")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().AddDate(0, 0, -400)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	if n := logging.PruneRunLogs(nil, dir, 0, ""); n != 0 {
		t.Fatalf("retention 0 pruned %d logs", n)
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatalf("expected log kept: %v", err)
	}
}
