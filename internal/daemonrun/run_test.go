package daemonrun

import (
	"os"
	"path/filepath"
	"testing"

	"volo/internal/history"
	"volo/internal/logging"
	"volo/internal/testsupport"
)

func TestBuildWiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	components, err := Build(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if components.Handler == nil || components.Gateway == nil {
		t.Fatalf("expected handler and gateway, got %+v", components)
	}
	if len(components.Closers) != 1 {
		t.Fatalf("expected only the history store to need closing, got %d closers", len(components.Closers))
	}
	for _, c := range components.Closers {
		if err := c.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.SessionsDir, history.DBName)); err != nil {
		t.Fatalf("expected history database: %v", err)
	}
}

func TestBuildRejectsMissingToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Discord.Token = ""
	if _, err := Build(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error without a bot token")
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "volo-1.log")
	second := filepath.Join(dir, "volo-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	target, err := os.Readlink(filepath.Join(dir, "volo.log"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != second {
		t.Fatalf("expected pointer to %s, got %s", second, target)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volo.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected pid contents, got %q %v", data, err)
	}
}
