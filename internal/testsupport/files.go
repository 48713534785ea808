package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteArtifact creates a session artifact of exactly size bytes (at least
// one). Tracks start with the Ogg capture pattern and transcripts with a
// heading, so zip bundles and uploads carry recognisable content.
func WriteArtifact(t testing.TB, path string, size int) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	var head string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg":
		head = "OggS"
	case ".md":
		head = "# Transcript\n"
	}
	data := append([]byte(head), bytes.Repeat([]byte{'.'}, max(size-len(head), 0))...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data[:size], 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
