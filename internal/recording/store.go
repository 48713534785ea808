package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"volo/internal/services"
)

// SessionIDLayout is the time layout used for session identifiers.
const SessionIDLayout = "2006-01-02_15-04-05"

const (
	chunksDirName   = "chunks"
	tracksDirName   = "tracks"
	transcriptName  = "transcript.md"
	mixedTrackName  = "mixed.ogg"
	maxIDCollisions = 100
)

// Store owns the on-disk session tree rooted at a sessions directory.
type Store struct {
	baseDir string
	loc     *time.Location
	now     func() time.Time
}

// NewStore constructs a store rooted at baseDir. Session ids are rendered in
// loc; a nil location falls back to UTC.
func NewStore(baseDir string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{baseDir: baseDir, loc: loc, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// BaseDir returns the sessions root.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Create assigns a new session id and eagerly creates the session's root,
// chunk and track directories. Two sessions created within the same second get
// "-2", "-3", ... suffixes; the root directory is claimed exclusively so
// concurrent creators never share a tree.
func (s *Store) Create(guildID string) (*Session, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "recording", "create sessions dir", "Failed to create sessions directory", err)
	}
	startedAt := s.now().In(s.loc)
	base := startedAt.Format(SessionIDLayout)

	for attempt := 1; attempt <= maxIDCollisions; attempt++ {
		id := base
		if attempt > 1 {
			id = fmt.Sprintf("%s-%d", base, attempt)
		}
		root := filepath.Join(s.baseDir, id)
		err := os.Mkdir(root, 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "recording", "create session dir", "Failed to create session directory", err)
		}
		session := newSession(id, guildID, root, startedAt)
		for _, dir := range []string{session.ChunkDir, session.TrackDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, services.Wrap(services.ErrTransient, "recording", "create session dir", "Failed to create session layout", err)
			}
		}
		return session, nil
	}
	return nil, services.Wrap(services.ErrTransient, "recording", "allocate session id",
		fmt.Sprintf("Too many sessions started at %s", base), nil)
}

// Open loads an existing session tree for offline work such as re-export.
// Display names are recovered from previously exported track file names; the
// transcript is not parsed back into lines.
func (s *Store) Open(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, services.Wrap(services.ErrValidation, "recording", "open session", fmt.Sprintf("Invalid session id %q", id), nil)
	}
	root := filepath.Join(s.baseDir, id)
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "recording", "open session", fmt.Sprintf("Session %s not found", id), err)
		}
		return nil, services.Wrap(services.ErrTransient, "recording", "open session", "Failed to stat session directory", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "recording", "open session", fmt.Sprintf("%s is not a directory", root), nil)
	}
	startedAt := info.ModTime()
	if parsed, err := time.ParseInLocation(SessionIDLayout, trimCollisionSuffix(id), s.loc); err == nil {
		startedAt = parsed
	}
	session := newSession(id, "", root, startedAt)
	session.restoreNamesFromTracks()
	return session, nil
}

func trimCollisionSuffix(id string) string {
	if len(id) > len(SessionIDLayout) {
		return id[:len(SessionIDLayout)]
	}
	return id
}
