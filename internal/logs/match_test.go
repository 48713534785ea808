package logs_test

import (
	"testing"

	"volo/internal/logs"
)

func TestSessionMatcher(t *testing.T) {
	match := logs.SessionMatcher("2024-05-01_20-00-00")
	tests := []struct {
		line string
		want bool
	}{
		{`2024-05-01T18:00:00Z INFO session[2024-05-01_20-00-00]: session started guild_id=1`, true},
		{`{"level":"INFO","msg":"finalized","session_id":"2024-05-01_20-00-00"}`, true},
		{`{"level":"INFO","msg":"finalized","session_id":"2024-05-01_20-00-00-2"}`, false},
		{`2024-05-01T18:00:00Z INFO delivery: upload ok session_id=2024-05-01_20-00-00`, true},
		{`2024-05-01T18:00:00Z INFO delivery: upload ok session_id=2024-05-01_20-00-00-2`, false},
		{`2024-05-01T18:00:00Z INFO bot: ready`, false},
	}
	for _, tt := range tests {
		if got := match(tt.line); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestFieldMatcherEmptyValue(t *testing.T) {
	if logs.FieldMatcher("guild_id", "") != nil {
		t.Fatal("expected nil matcher for empty value")
	}
	if logs.SessionMatcher(" ") != nil {
		t.Fatal("expected nil session matcher for blank id")
	}
}

func TestFieldMatcherGuild(t *testing.T) {
	match := logs.FieldMatcher("guild_id", "42")
	if !match(`2024-05-01T18:00:00Z INFO bot: recording started guild_id=42 channel_id=7`) {
		t.Fatal("expected console line to match")
	}
	if match(`2024-05-01T18:00:00Z INFO bot: recording started guild_id=420`) {
		t.Fatal("unexpected prefix match")
	}
	if !match(`{"guild_id":"42","msg":"x"}`) {
		t.Fatal("expected json line to match")
	}
}
