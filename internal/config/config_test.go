package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"volo/internal/config"
)

func clearVoloEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISCORD_BOT_TOKEN", "CHUNK_SECONDS", "TRANSCRIPTION_LANGUAGE",
		"TRANSCRIPTION_METHOD", "PLAYER_MAP_FILE_PATH", "KAFKA_BROKERS",
		"MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearVoloEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantSessions := filepath.Join(tempHome, ".local", "share", "volo", "sessions")
	if cfg.Paths.SessionsDir != wantSessions {
		t.Fatalf("unexpected sessions dir: got %q want %q", cfg.Paths.SessionsDir, wantSessions)
	}
	if cfg.Recording.ChunkSeconds != 30 {
		t.Fatalf("expected 30 second chunks, got %d", cfg.Recording.ChunkSeconds)
	}
	if cfg.Recording.Language != "auto" {
		t.Fatalf("expected auto language, got %q", cfg.Recording.Language)
	}
	if cfg.Recording.TimeZone != "Europe/Berlin" {
		t.Fatalf("unexpected time zone %q", cfg.Recording.TimeZone)
	}
	if cfg.Capture.Method != "local" {
		t.Fatalf("expected local transcription method, got %q", cfg.Capture.Method)
	}
	if cfg.RetryDelay().Seconds() != 5 {
		t.Fatalf("unexpected retry delay %s", cfg.RetryDelay())
	}
	if cfg.Paths.PlayerMapFile != "" {
		t.Fatalf("expected no player map, got %q", cfg.Paths.PlayerMapFile)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.SessionsDir, cfg.Paths.ExportDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadHonoursEnvironment(t *testing.T) {
	clearVoloEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_BOT_TOKEN", "env-token")
	t.Setenv("CHUNK_SECONDS", "15")
	t.Setenv("TRANSCRIPTION_LANGUAGE", "eng")
	t.Setenv("TRANSCRIPTION_METHOD", "OpenAI")
	t.Setenv("PLAYER_MAP_FILE_PATH", "/tmp/players.yml")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Fatalf("expected token from env, got %q", cfg.Discord.Token)
	}
	if cfg.Recording.ChunkSeconds != 15 {
		t.Fatalf("expected chunk seconds from env, got %d", cfg.Recording.ChunkSeconds)
	}
	if cfg.Recording.Language != "en" {
		t.Fatalf("expected eng to normalize to en, got %q", cfg.Recording.Language)
	}
	if cfg.Capture.Method != "openai" {
		t.Fatalf("expected openai method, got %q", cfg.Capture.Method)
	}
	if cfg.Paths.PlayerMapFile != "/tmp/players.yml" {
		t.Fatalf("unexpected player map path %q", cfg.Paths.PlayerMapFile)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Events.Brokers)
	}
	if err := cfg.ValidateRuntime(); err != nil {
		t.Fatalf("ValidateRuntime: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearVoloEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "volo.toml")

	type payload struct {
		Paths struct {
			SessionsDir string `toml:"sessions_dir"`
		} `toml:"paths"`
		Recording struct {
			ChunkSeconds int    `toml:"chunk_seconds"`
			Language     string `toml:"language"`
			TimeZone     string `toml:"time_zone"`
		} `toml:"recording"`
		Discord struct {
			GuildIDs []string `toml:"guild_ids"`
		} `toml:"discord"`
	}
	custom := payload{}
	custom.Paths.SessionsDir = filepath.Join(tempDir, "sessions")
	custom.Recording.ChunkSeconds = 20
	custom.Recording.Language = "german"
	custom.Recording.TimeZone = "UTC"
	custom.Discord.GuildIDs = []string{" 1 ", "2", "1", ""}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.SessionsDir != filepath.Join(tempDir, "sessions") {
		t.Fatalf("unexpected sessions dir %q", cfg.Paths.SessionsDir)
	}
	if cfg.Recording.ChunkSeconds != 20 {
		t.Fatalf("expected chunk seconds 20, got %d", cfg.Recording.ChunkSeconds)
	}
	if cfg.Recording.Language != "de" {
		t.Fatalf("expected german to normalize to de, got %q", cfg.Recording.Language)
	}
	if got := strings.Join(cfg.Discord.GuildIDs, ","); got != "1,2" {
		t.Fatalf("unexpected guild ids %q", got)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "UTC" {
		t.Fatalf("unexpected location %s", loc)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{name: "chunk seconds", mutate: func(c *config.Config) { c.Recording.ChunkSeconds = -1 }, want: "chunk_seconds"},
		{name: "time zone", mutate: func(c *config.Config) { c.Recording.TimeZone = "Mars/Olympus" }, want: "time_zone"},
		{name: "bitrate", mutate: func(c *config.Config) { c.Recording.TrackBitrate = "loud" }, want: "track_bitrate"},
		{name: "retry delay", mutate: func(c *config.Config) { c.Recording.RetryDelaySeconds = 0 }, want: "retry_delay_seconds"},
		{name: "archive endpoint", mutate: func(c *config.Config) {
			c.Archive.Enabled = true
			c.Archive.Endpoint = ""
		}, want: "archive.endpoint"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Recording.ChunkSeconds = 30
			cfg.Recording.Language = "auto"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestValidateRuntimeRequiresToken(t *testing.T) {
	cfg := config.Default()
	cfg.Recording.ChunkSeconds = 30
	err := cfg.ValidateRuntime()
	if err == nil || !strings.Contains(err.Error(), "discord.token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestRejectsUnknownLanguage(t *testing.T) {
	clearVoloEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("TRANSCRIPTION_LANGUAGE", "klingon")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	clearVoloEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	t.Setenv("HOME", t.TempDir())
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Recording.TrackBitrate != "32k" || cfg.Recording.MixBitrate != "48k" {
		t.Fatalf("unexpected bitrates %q/%q", cfg.Recording.TrackBitrate, cfg.Recording.MixBitrate)
	}
}
