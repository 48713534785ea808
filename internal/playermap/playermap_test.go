package playermap_test

import (
	"os"
	"path/filepath"
	"testing"

	"volo/internal/playermap"
)

func TestParseAcceptsNumericAndStringKeys(t *testing.T) {
	data := []byte(`
123456789012345678:
  player: alice
  character: Lyra
"42":
  player: bob
  character: Grom
`)
	m, err := playermap.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := m["123456789012345678"]; got.Player != "alice" || got.Character != "Lyra" {
		t.Fatalf("numeric key entry = %+v", got)
	}
	if got := m["42"]; got.Player != "bob" || got.Character != "Grom" {
		t.Fatalf("string key entry = %+v", got)
	}
	if ids := m.IDs(); len(ids) != 2 || ids[0] != "123456789012345678" || ids[1] != "42" {
		t.Fatalf("IDs = %v", ids)
	}
}

func TestParseEmptyAndInvalid(t *testing.T) {
	m, err := playermap.Parse([]byte("  \n"))
	if err != nil || len(m) != 0 {
		t.Fatalf("empty input: m=%v err=%v", m, err)
	}
	if _, err := playermap.Parse([]byte("1: [a, b]\n")); err == nil {
		t.Fatal("expected error for non-mapping entry")
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	m, err := playermap.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
}

func TestStoreUpdatePersistsMergedMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps", "player_map.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("1:\n  player: alice\n  character: Lyra\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := playermap.OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	merged, err := store.Update(playermap.Map{
		"1": {Player: "alice", Character: "Lyra the Bold"},
		"2": {Player: "bob", Character: "Grom"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(merged) != 2 || merged["1"].Character != "Lyra the Bold" {
		t.Fatalf("merged = %v", merged)
	}

	reloaded, err := playermap.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded["2"].Player != "bob" || reloaded["1"].Character != "Lyra the Bold" {
		t.Fatalf("reloaded = %v", reloaded)
	}
	if entry, ok := store.Lookup("2"); !ok || entry.Character != "Grom" {
		t.Fatalf("Lookup = %+v, %v", entry, ok)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	store, err := playermap.OpenStore("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Update(playermap.Map{"1": {Player: "a"}}); err != nil {
		t.Fatal(err)
	}
	snap := store.Snapshot()
	snap["1"] = playermap.Entry{Player: "mutated"}
	if entry, _ := store.Lookup("1"); entry.Player != "a" {
		t.Fatalf("snapshot mutation leaked into store: %+v", entry)
	}
}
