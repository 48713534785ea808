package playermap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"

	"volo/internal/fileutil"
)

// Entry names the player behind a guild member and the character they play.
type Entry struct {
	Player    string `yaml:"player" json:"player"`
	Character string `yaml:"character" json:"character"`
}

// Map is keyed by chat user id.
type Map map[string]Entry

// Clone returns an independent copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for id, entry := range m {
		out[id] = entry
	}
	return out
}

// Merge returns a copy of m with every entry of other applied on top.
func (m Map) Merge(other Map) Map {
	out := m.Clone()
	for id, entry := range other {
		out[id] = entry
	}
	return out
}

// IDs returns the user ids in sorted order.
func (m Map) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Parse decodes a YAML player map. User ids may be written as numbers or
// strings.
func Parse(data []byte) (Map, error) {
	out := Map{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}
	var raw yaml.MapSlice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse player map: %w", err)
	}
	for _, item := range raw {
		id := strings.TrimSpace(fmt.Sprint(item.Key))
		if id == "" {
			continue
		}
		entry, err := entryFromValue(item.Value)
		if err != nil {
			return nil, fmt.Errorf("parse player map entry %s: %w", id, err)
		}
		out[id] = entry
	}
	return out, nil
}

func entryFromValue(value any) (Entry, error) {
	var entry Entry
	switch v := value.(type) {
	case nil:
		return entry, nil
	case map[string]any:
		entry.Player = stringField(v["player"])
		entry.Character = stringField(v["character"])
	case yaml.MapSlice:
		for _, item := range v {
			switch fmt.Sprint(item.Key) {
			case "player":
				entry.Player = stringField(item.Value)
			case "character":
				entry.Character = stringField(item.Value)
			}
		}
	default:
		return entry, fmt.Errorf("expected mapping, got %T", value)
	}
	return entry, nil
}

func stringField(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// Load reads a player map file. A missing file yields an empty map.
func Load(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Map{}, nil
		}
		return nil, fmt.Errorf("read player map: %w", err)
	}
	return Parse(data)
}

// Save writes m as YAML, replacing the file atomically.
func Save(path string, m Map) error {
	data, err := yaml.Marshal(map[string]Entry(m))
	if err != nil {
		return fmt.Errorf("encode player map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure player map dir: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write player map: %w", err)
	}
	return nil
}

// Store is the process-wide player map. Reads are frequent; updates only
// happen through an explicit refresh.
type Store struct {
	mu   sync.RWMutex
	path string
	m    Map
}

// OpenStore loads the map at path. An empty path keeps the map in memory only.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path), m: Map{}}
	if s.path == "" {
		return s, nil
	}
	m, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.m = m
	return s, nil
}

// Snapshot returns a copy of the current map.
func (s *Store) Snapshot() Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Clone()
}

// Lookup returns the entry for a user id.
func (s *Store) Lookup(userID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.m[userID]
	return entry, ok
}

// Update merges entries into the map and persists it when a path is set.
// The in-memory map is only replaced once the file has been written.
func (s *Store) Update(entries Map) (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := s.m.Merge(entries)
	if s.path != "" {
		if err := Save(s.path, merged); err != nil {
			return nil, err
		}
	}
	s.m = merged
	return merged.Clone(), nil
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}
