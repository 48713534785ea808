package delivery

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"volo/internal/logging"
)

// ErrUploadFailed marks a file that could not be posted to the channel.
var ErrUploadFailed = errors.New("upload failed")

// Channel is the destination that receives artifacts.
type Channel interface {
	SendFile(ctx context.Context, path, caption string) error
	SendMessage(ctx context.Context, text string) error
}

// Options configures delivery.
type Options struct {
	// ExportDir holds temporary bundles.
	ExportDir string
	// MaxFileBytes rejects larger files locally; 0 disables the check.
	MaxFileBytes int64
	// UploadTimeout bounds each upload; 0 disables the bound.
	UploadTimeout time.Duration
}

// Report summarizes one delivery attempt.
type Report struct {
	Uploaded       []string
	Failed         []string
	BundleAttempt  bool
	BundleUploaded bool
	Status         string
}

// Outcome is a short label for history and events.
func (r Report) Outcome() string {
	switch {
	case len(r.Uploaded) == 0 && len(r.Failed) == 0:
		return "nothing"
	case len(r.Failed) == 0:
		return "uploaded"
	case r.BundleUploaded:
		return "bundle"
	default:
		return "local"
	}
}

// Deliverer posts session artifacts with a bundle fallback.
type Deliverer struct {
	opts   Options
	logger *slog.Logger
}

// NewDeliverer constructs a Deliverer.
func NewDeliverer(opts Options, logger *slog.Logger) *Deliverer {
	return &Deliverer{opts: opts, logger: logging.NewComponentLogger(logger, "delivery")}
}

// Deliver uploads each artifact individually. Files that fail are zipped into
// <export_dir>/<session>_artifacts.zip and uploaded once as a bundle; the
// bundle file is always removed afterwards. When anything failed, a status
// message names the failed files and, if the bundle did not make it, the
// local directory that still holds them.
func (d *Deliverer) Deliver(ctx context.Context, ch Channel, sessionID, sessionDir string, artifacts []string) Report {
	var report Report
	if ch == nil || len(artifacts) == 0 {
		return report
	}
	logger := logging.WithContext(ctx, d.logger).With(logging.Session(sessionID))

	for _, path := range artifacts {
		caption := fmt.Sprintf("Session `%s`: `%s`", sessionID, filepath.Base(path))
		if err := d.upload(ctx, ch, path, caption); err != nil {
			logger.Error("artifact upload failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "artifact_upload_failed"),
				logging.String(logging.FieldErrorHint, "check channel permissions and the upload size limit"),
			)
			report.Failed = append(report.Failed, path)
			continue
		}
		report.Uploaded = append(report.Uploaded, path)
	}
	if len(report.Failed) == 0 {
		logger.Info("artifacts delivered",
			logging.Int("files", len(report.Uploaded)),
			logging.String(logging.FieldEventType, "artifacts_delivered"),
		)
		return report
	}

	report.BundleAttempt = true
	report.BundleUploaded = d.uploadBundle(ctx, ch, logger, sessionID, report.Failed)
	report.Status = StatusMessage(sessionID, sessionDir, report.Failed, report.BundleUploaded)
	if err := ch.SendMessage(ctx, report.Status); err != nil {
		logger.Error("delivery status message failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "delivery_status_failed"),
			logging.String(logging.FieldErrorHint, "artifacts remain under "+sessionDir),
		)
	}
	logging.WarnWithContext(logger, "artifact delivery fell back", "artifacts_delivery_fallback",
		logging.Int("uploaded", len(report.Uploaded)),
		logging.Int("failed", len(report.Failed)),
		logging.Bool("bundle_uploaded", report.BundleUploaded),
		logging.String(logging.FieldImpact, "some artifacts were not posted individually"),
	)
	return report
}

func (d *Deliverer) uploadBundle(ctx context.Context, ch Channel, logger *slog.Logger, sessionID string, files []string) bool {
	bundle := filepath.Join(d.opts.ExportDir, sessionID+"_artifacts.zip")
	defer func() {
		if err := os.Remove(bundle); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("bundle cleanup failed",
				logging.String("path", bundle),
				logging.Error(err),
				logging.String(logging.FieldEventType, "bundle_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "stale zip left in export_dir"),
			)
		}
	}()

	if err := WriteBundle(bundle, files); err != nil {
		logger.Error("bundle creation failed",
			logging.String("path", bundle),
			logging.Error(err),
			logging.String(logging.FieldEventType, "bundle_create_failed"),
			logging.String(logging.FieldErrorHint, "check export_dir permissions and free space"),
		)
		return false
	}
	caption := fmt.Sprintf("Session `%s`: fallback bundle with the files that failed to upload", sessionID)
	if err := d.upload(ctx, ch, bundle, caption); err != nil {
		logger.Error("bundle upload failed",
			logging.String("path", bundle),
			logging.Error(err),
			logging.String(logging.FieldEventType, "bundle_upload_failed"),
			logging.String(logging.FieldErrorHint, "fetch the files from the session directory"),
		)
		return false
	}
	return true
}

func (d *Deliverer) upload(ctx context.Context, ch Channel, path, caption string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if d.opts.MaxFileBytes > 0 && info.Size() > d.opts.MaxFileBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrUploadFailed, filepath.Base(path), info.Size(), d.opts.MaxFileBytes)
	}
	if d.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.UploadTimeout)
		defer cancel()
	}
	if err := ch.SendFile(ctx, path, caption); err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return nil
}

// WriteBundle zips files flat (base names only) into path, replacing any
// existing file. A partial zip is removed on failure.
func WriteBundle(path string, files []string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure export dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(path)
		}
	}()

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addToZip(zw, file); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish bundle: %w", err)
	}
	return out.Close()
}

func addToZip(zw *zip.Writer, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(file), err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(file), err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", filepath.Base(file), err)
	}
	header.Name = filepath.Base(file)
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", filepath.Base(file), err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("zip copy %s: %w", filepath.Base(file), err)
	}
	return nil
}

// StatusMessage renders the message posted after a partial delivery failure.
func StatusMessage(sessionID, sessionDir string, failed []string, bundleUploaded bool) string {
	names := make([]string, 0, len(failed))
	for _, path := range failed {
		names = append(names, "`"+filepath.Base(path)+"`")
	}
	list := strings.Join(names, ", ")
	if bundleUploaded {
		return fmt.Sprintf("Some files could not be uploaded individually: %s. I posted a ZIP bundle for session `%s` instead.", list, sessionID)
	}
	return fmt.Sprintf("Some session files could not be uploaded: %s. They remain available locally under `%s`.", list, sessionDir)
}
