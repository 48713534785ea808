package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"volo/internal/config"
	"volo/internal/logging"
	"volo/internal/services"
	"volo/internal/textutil"
)

const component = "archive"

// ObjectStore is the subset of the MinIO client the archiver needs.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archiver uploads session files to a bucket.
type Archiver struct {
	store  ObjectStore
	bucket string
	region string
	prefix string
	logger *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

// New returns nil when archival is disabled.
func New(cfg config.Archive, logger *slog.Logger) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "create object storage client", err)
	}
	return NewWithStore(client, cfg, logger), nil
}

// NewWithStore builds an archiver on an existing object store.
func NewWithStore(store ObjectStore, cfg config.Archive, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logging.NewComponentLogger(logger, component),
	}
}

// ObjectKey builds the object name for a file inside a session root.
func ObjectKey(prefix, guildID, sessionID, rootDir, file string) string {
	rel, err := filepath.Rel(rootDir, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(file)
	}
	parts := []string{textutil.SanitizeToken(guildID), textutil.SanitizeToken(sessionID), filepath.ToSlash(rel)}
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return path.Join(parts...)
}

func (a *Archiver) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bucketReady {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := a.store.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.store.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
		a.logger.Info("archive bucket created", logging.String("bucket", a.bucket))
	}
	a.bucketReady = true
	return nil
}

// BucketExists reports whether the configured bucket is present.
func (a *Archiver) BucketExists(ctx context.Context) (bool, error) {
	return a.store.BucketExists(ctx, a.bucket)
}

// Upload stores every file and returns the object keys that were written.
// Failed files are joined into the returned error; the rest are still uploaded.
func (a *Archiver) Upload(ctx context.Context, guildID, sessionID, rootDir string, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "ensure bucket", a.bucket, err)
	}
	keys := make([]string, 0, len(files))
	var errs []error
	for _, file := range files {
		key := ObjectKey(a.prefix, guildID, sessionID, rootDir, file)
		opts := minio.PutObjectOptions{
			ContentType: contentType(file),
			UserMetadata: map[string]string{
				"guild-id":   guildID,
				"session-id": sessionID,
			},
		}
		if _, err := a.store.FPutObject(ctx, a.bucket, key, file, opts); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}

func contentType(file string) string {
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".ogg":
		return "audio/ogg"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
