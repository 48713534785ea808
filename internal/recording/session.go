package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"volo/internal/fileutil"
	"volo/internal/textutil"
)

// Session is one recording episode for a guild and the root of its artifact
// tree. The transcript state is mutated by the assembler while the session is
// active; after finalization it is only read.
type Session struct {
	ID        string
	GuildID   string
	RootDir   string
	ChunkDir  string
	TrackDir  string
	StartedAt time.Time

	mu        sync.Mutex
	chunkSeq  int
	lines     []string
	names     map[string]string
	finalized bool
}

func newSession(id, guildID, root string, startedAt time.Time) *Session {
	return &Session{
		ID:        id,
		GuildID:   guildID,
		RootDir:   root,
		ChunkDir:  filepath.Join(root, chunksDirName),
		TrackDir:  filepath.Join(root, tracksDirName),
		StartedAt: startedAt,
		names:     make(map[string]string),
	}
}

// NextChunk advances the session-wide chunk counter and returns the new value.
// The counter is shared by all speakers.
func (s *Session) NextChunk() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkSeq++
	return s.chunkSeq
}

// ChunkSequence returns the last assigned chunk number.
func (s *Session) ChunkSequence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkSeq
}

// AppendLine appends a rendered transcript line.
func (s *Session) AppendLine(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

// Lines returns a copy of the transcript lines in arrival order.
func (s *Session) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// SetDisplayName records the latest known name for a speaker.
func (s *Session) SetDisplayName(speakerID, name string) {
	s.mu.Lock()
	s.names[speakerID] = name
	s.mu.Unlock()
}

// DisplayName returns the last known name for a speaker.
func (s *Session) DisplayName(speakerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[speakerID]
	return name, ok
}

// MarkFinalized flags the session as finalized. It returns false if it
// already was.
func (s *Session) MarkFinalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return false
	}
	s.finalized = true
	return true
}

// SpeakerChunkDir is the directory holding one speaker's chunks.
func (s *Session) SpeakerChunkDir(speakerID string) string {
	return filepath.Join(s.ChunkDir, speakerID)
}

// ChunkPath is the path of chunk seq for a speaker.
func (s *Session) ChunkPath(speakerID string, seq int) string {
	return filepath.Join(s.SpeakerChunkDir(speakerID), fmt.Sprintf("chunk_%04d.wav", seq))
}

// TrackPath is the per-speaker track path. The display name is sanitized.
func (s *Session) TrackPath(speakerID, displayName string) string {
	return filepath.Join(s.TrackDir, fmt.Sprintf("user_%s_%s.ogg", speakerID, textutil.SafeFileName(displayName)))
}

// MixedPath is the path of the mixed track.
func (s *Session) MixedPath() string {
	return filepath.Join(s.TrackDir, mixedTrackName)
}

// TranscriptPath is the path of the transcript document.
func (s *Session) TranscriptPath() string {
	return filepath.Join(s.RootDir, transcriptName)
}

// Transcript renders the transcript document.
func (s *Session) Transcript() string {
	lines := s.Lines()
	var b strings.Builder
	b.WriteString("# Transcript – ")
	b.WriteString(s.ID)
	b.WriteString("\n\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTranscript writes the transcript document and returns its path.
func (s *Session) WriteTranscript() (string, error) {
	path := s.TranscriptPath()
	if err := fileutil.WriteFileAtomic(path, []byte(s.Transcript()), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// Speakers returns the ids of speakers with at least one chunk file, sorted.
func (s *Session) Speakers() ([]string, error) {
	entries, err := os.ReadDir(s.ChunkDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list chunk dir: %w", err)
	}
	var speakers []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		chunks, err := s.Chunks(entry.Name())
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			speakers = append(speakers, entry.Name())
		}
	}
	sort.Strings(speakers)
	return speakers, nil
}

// Chunks returns a speaker's chunk files ordered by chunk number.
func (s *Session) Chunks(speakerID string) ([]string, error) {
	dir := s.SpeakerChunkDir(speakerID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list speaker chunks: %w", err)
	}
	type numbered struct {
		seq  int
		path string
	}
	var chunks []numbered
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		seq, ok := parseChunkName(entry.Name())
		if !ok {
			continue
		}
		chunks = append(chunks, numbered{seq: seq, path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.path
	}
	return out, nil
}

// parseChunkName extracts the sequence number from chunk_NNNN.wav.
func parseChunkName(name string) (int, bool) {
	if !strings.HasPrefix(name, "chunk_") || !strings.HasSuffix(name, ".wav") {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "chunk_"), ".wav"))
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// SpeakerTracks returns the existing per-speaker tracks sorted by file name.
func (s *Session) SpeakerTracks() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.TrackDir, "user_*.ogg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (s *Session) restoreNamesFromTracks() {
	tracks, err := s.SpeakerTracks()
	if err != nil {
		return
	}
	for _, track := range tracks {
		rest := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(track), "user_"), ".ogg")
		speaker, name, ok := strings.Cut(rest, "_")
		if !ok || speaker == "" || name == "" {
			continue
		}
		s.names[speaker] = name
	}
}
