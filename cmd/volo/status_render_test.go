package main

import (
	"fmt"
	"strings"
	"testing"

	"volo/internal/deps"
	"volo/internal/history"
	"volo/internal/preflight"
	"volo/internal/testsupport"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Bot", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Bot:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Bot", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false, Detail: "binary \"ffmpeg\" not found"},
		{Name: "Transcriber", Available: true, Command: "volo-transcriber"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] 1/2 available") {
		t.Fatalf("unexpected summary %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] binary") {
		t.Fatalf("unexpected ffmpeg line %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: volo-transcriber)") {
		t.Fatalf("unexpected transcriber line %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies: FFmpeg") {
		t.Fatalf("unexpected missing line %q", lines[3])
	}

	lines = dependencyLines(statuses[1:], false)
	if len(lines) != 2 || !strings.Contains(lines[0], "[OK] 1/1 available") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Sessions dir", Passed: true, Detail: "/srv/volo"},
		{Name: "Player map", Optional: true, Detail: "not configured"},
		{Name: "Discord token", Detail: "missing"},
	}, false)
	for i, want := range []string{"[OK] /srv/volo", "[WARN] not configured", "[ERROR] missing"} {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestFormatCounts(t *testing.T) {
	tests := []struct {
		name   string
		counts map[history.Status]int
		want   string
	}{
		{name: "empty", counts: nil, want: "none recorded"},
		{
			name:   "mixed",
			counts: map[history.Status]int{history.StatusRecording: 1, history.StatusDelivered: 3},
			want:   "4 total (1 recording, 3 delivered)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCounts(tt.counts); got != tt.want {
				t.Fatalf("formatCounts = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Volo ==")
	requireContains(t, out, "[INFO] Not running")
	requireContains(t, out, "none recorded")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "== Preflight ==")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}
