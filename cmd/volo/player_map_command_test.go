package main

import (
	"encoding/json"
	"strings"
	"testing"

	"volo/internal/playermap"
	"volo/internal/testsupport"
)

func TestPlayerMapSetAndShow(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPlayerMap("players.yml"))

	out, _, err := runCLI(t, []string{"player-map", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("player-map show: %v", err)
	}
	requireContains(t, out, "is empty")

	out, _, err = runCLI(t, []string{"player-map", "set", "1001", "--player", "Alice", "--character", "Thorin"}, env.configPath)
	if err != nil {
		t.Fatalf("player-map set: %v", err)
	}
	requireContains(t, out, "Updated 1001")

	out, _, err = runCLI(t, []string{"player-map", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("player-map show: %v", err)
	}
	requireContains(t, out, "Alice")
	requireContains(t, out, "Thorin")

	out, _, err = runCLI(t, []string{"player-map", "show", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("player-map show --json: %v", err)
	}
	var m playermap.Map
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["1001"] != (playermap.Entry{Player: "Alice", Character: "Thorin"}) {
		t.Fatalf("unexpected map %+v", m)
	}
}

func TestPlayerMapRequiresConfiguredFile(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("PLAYER_MAP_FILE_PATH", "")
	if _, _, err := runCLI(t, []string{"player-map", "show"}, env.configPath); err == nil {
		t.Fatal("expected error without player_map_file")
	}
}

func TestPlayerMapSetRequiresFields(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPlayerMap("players.yml"))
	if _, _, err := runCLI(t, []string{"player-map", "set", "1001"}, env.configPath); err == nil {
		t.Fatal("expected error without --player or --character")
	}
}

func TestPlayerMapSetKeepsOmittedFields(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPlayerMap("players.yml"))

	if _, _, err := runCLI(t, []string{"player-map", "set", "1001", "--player", "Alice", "--character", "Thorin"}, env.configPath); err != nil {
		t.Fatalf("player-map set: %v", err)
	}
	if _, _, err := runCLI(t, []string{"player-map", "set", "1001", "--character", "Tom & Jerry"}, env.configPath); err != nil {
		t.Fatalf("player-map set character: %v", err)
	}

	out, _, err := runCLI(t, []string{"player-map", "show", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("player-map show --json: %v", err)
	}
	if !strings.Contains(out, `"Tom & Jerry"`) {
		t.Fatalf("expected unescaped character name in %q", out)
	}
	var m playermap.Map
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["1001"] != (playermap.Entry{Player: "Alice", Character: "Tom & Jerry"}) {
		t.Fatalf("unexpected entry %+v", m["1001"])
	}
}
