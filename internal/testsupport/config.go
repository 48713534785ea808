package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"volo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timing values are shortened so supervisor and drain tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Discord.Token = "test-token"
	cfgVal.Paths.SessionsDir = filepath.Join(base, "sessions")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Recording.ChunkSeconds = 30
	cfgVal.Recording.Language = "auto"
	cfgVal.Recording.TimeZone = "UTC"
	cfgVal.Capture.Method = "local"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPlayerMap points the config at a player map file inside the temp dir.
func WithPlayerMap(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.PlayerMapFile = filepath.Join(b.baseDir, name)
	}
}

// WithCaptureCommand overrides the capture sidecar command.
func WithCaptureCommand(command string, args ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.Command = command
		b.cfg.Capture.Args = args
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and the default capture
// sidecar are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", config.DefaultCaptureCommand}
		}
		for _, name := range names {
			StubBinary(b.t, b.baseDir, name, "exit 0\n")
		}
	}
}

// StubBinary writes an executable shell script named name into
// <dir>/bin, prepends that directory to PATH for the duration of the test, and
// returns the script path.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()

	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	script := []byte("#!/bin/sh\n" + body)
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if list := filepath.SplitList(oldPath); len(list) == 0 || list[0] != binDir {
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SessionsDir)
}
