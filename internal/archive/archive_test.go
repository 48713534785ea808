package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"

	"volo/internal/archive"
	"volo/internal/bot"
	"volo/internal/config"
	"volo/internal/logging"
	"volo/internal/session"
)

type fakeStore struct {
	mu          sync.Mutex
	exists      bool
	existsErr   error
	made        []string
	puts        map[string]minio.PutObjectOptions
	failObjects map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: make(map[string]minio.PutObjectOptions), failObjects: make(map[string]bool)}
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, f.existsErr
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.made = append(f.made, bucket)
	f.exists = true
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, _ string, object, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failObjects[object] {
		return minio.UploadInfo{}, errors.New("access denied")
	}
	f.puts[object] = opts
	return minio.UploadInfo{Key: object}, nil
}

func TestObjectKey(t *testing.T) {
	root := filepath.Join("/data", "sessions", "20240501-120000")
	tests := []struct {
		name   string
		prefix string
		file   string
		want   string
	}{
		{name: "transcript", prefix: "", file: filepath.Join(root, "transcript.md"), want: "1234/20240501-120000/transcript.md"},
		{name: "nested with prefix", prefix: "/volo/", file: filepath.Join(root, "audio", "mixed.ogg"), want: "volo/1234/20240501-120000/audio/mixed.ogg"},
		{name: "outside root", prefix: "p", file: "/elsewhere/out.zip", want: "p/1234/20240501-120000/out.zip"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := archive.ObjectKey(tc.prefix, "1234", "20240501-120000", root, tc.file)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestUploadCreatesBucketOnce(t *testing.T) {
	store := newFakeStore()
	a := archive.NewWithStore(store, config.Archive{Bucket: "volo-sessions", Prefix: "rec"}, logging.NewNop())
	root := t.TempDir()
	files := []string{filepath.Join(root, "transcript.md"), filepath.Join(root, "audio", "mixed.ogg")}

	keys, err := a.Upload(context.Background(), "g", "s", root, files)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
	if _, err := a.Upload(context.Background(), "g", "s", root, files[:1]); err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if len(store.made) != 1 || store.made[0] != "volo-sessions" {
		t.Fatalf("expected bucket created once, got %v", store.made)
	}
	opts := store.puts["rec/g/s/audio/mixed.ogg"]
	if opts.ContentType != "audio/ogg" {
		t.Fatalf("expected audio/ogg content type, got %q", opts.ContentType)
	}
	if opts.UserMetadata["session-id"] != "s" {
		t.Fatalf("expected session metadata, got %v", opts.UserMetadata)
	}
}

func TestUploadContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	store.exists = true
	store.failObjects["g/s/transcript.md"] = true
	a := archive.NewWithStore(store, config.Archive{Bucket: "b"}, logging.NewNop())
	root := t.TempDir()

	keys, err := a.Upload(context.Background(), "g", "s", root, []string{
		filepath.Join(root, "transcript.md"),
		filepath.Join(root, "audio", "mixed.ogg"),
	})
	if err == nil || !strings.Contains(err.Error(), "transcript.md") {
		t.Fatalf("expected joined error naming transcript, got %v", err)
	}
	if len(keys) != 1 || keys[0] != "g/s/audio/mixed.ogg" {
		t.Fatalf("expected mixed track to be archived, got %v", keys)
	}
	if len(store.made) != 0 {
		t.Fatalf("expected existing bucket to be reused, got %v", store.made)
	}
}

func TestUploadRetriesBucketCheck(t *testing.T) {
	store := newFakeStore()
	store.existsErr = errors.New("dial tcp: refused")
	a := archive.NewWithStore(store, config.Archive{Bucket: "b"}, logging.NewNop())
	root := t.TempDir()
	file := filepath.Join(root, "transcript.md")

	if _, err := a.Upload(context.Background(), "g", "s", root, []string{file}); err == nil {
		t.Fatal("expected bucket check error")
	}
	store.mu.Lock()
	store.existsErr = nil
	store.exists = true
	store.mu.Unlock()
	keys, err := a.Upload(context.Background(), "g", "s", root, []string{file})
	if err != nil || len(keys) != 1 {
		t.Fatalf("expected retry to succeed, got %v %v", keys, err)
	}
}

func TestNewDisabledReturnsNil(t *testing.T) {
	a, err := archive.New(config.Archive{Enabled: false}, logging.NewNop())
	if err != nil || a != nil {
		t.Fatalf("expected nil archiver, got %v %v", a, err)
	}
}

func TestObserverArchivesFinalizedArtifacts(t *testing.T) {
	store := newFakeStore()
	a := archive.NewWithStore(store, config.Archive{Bucket: "b"}, logging.NewNop())
	obs := archive.NewObserver(a, logging.NewNop())
	root := t.TempDir()

	obs.SessionFinalized(context.Background(), bot.SessionInfo{GuildID: "g", SessionID: "s", RootDir: root}, session.FinalizeResult{
		Artifacts: []string{filepath.Join(root, "transcript.md")},
	})
	if _, ok := store.puts["g/s/transcript.md"]; !ok {
		t.Fatalf("expected transcript object, got %v", store.puts)
	}
}
