package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"volo/internal/fileutil"
	"volo/internal/logging"
	"volo/internal/services"
)

var (
	// ErrNoInput is returned when an export is requested without input files.
	ErrNoInput = fmt.Errorf("no input files: %w", services.ErrValidation)
	// ErrExportFailed is returned when the transcoder exits unsuccessfully.
	ErrExportFailed = fmt.Errorf("audio export failed: %w", services.ErrExternalTool)
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Exporter turns chunk files into compressed tracks with ffmpeg. Each call is
// a single blocking ffmpeg invocation; nothing is retried.
type Exporter struct {
	ffmpeg string
	logger *slog.Logger
	run    commandRunner
}

// NewExporter constructs an exporter that invokes the given ffmpeg binary.
func NewExporter(ffmpegBinary string, logger *slog.Logger) *Exporter {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Exporter{
		ffmpeg: ffmpegBinary,
		logger: logging.NewComponentLogger(logger, "audio"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (e *Exporter) WithCommandRunner(r commandRunner) {
	if e != nil && r != nil {
		e.run = r
	}
}

// ConcatToTrack joins chunks, in exactly the given order, into one mono Opus
// track at outPath. The ffmpeg concat list is written next to the output as
// <name>.concat.txt and removed once the track exists.
func (e *Exporter) ConcatToTrack(ctx context.Context, chunks []string, outPath, bitrate string) error {
	if len(chunks) == 0 {
		return ErrNoInput
	}
	listPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".concat.txt"
	if err := writeConcatList(chunks, listPath); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:a", "libopus",
		"-b:a", bitrate,
		"-ac", "1",
		outPath,
	}
	e.logger.Debug("concatenating chunks",
		logging.String("output", outPath),
		logging.Int("chunks", len(chunks)),
		logging.String("bitrate", bitrate),
	)
	if err := e.run(ctx, e.ffmpeg, args...); err != nil {
		discardPartial(outPath)
		return fmt.Errorf("%w: concat %s: %w", ErrExportFailed, filepath.Base(outPath), err)
	}
	_ = os.Remove(listPath)
	return nil
}

// MixToTrack combines speaker tracks into one mono track. A single input is
// copied unchanged. Multiple inputs are mixed with amix and normalization
// disabled, so relative speaker volume is preserved and clipping is possible.
func (e *Exporter) MixToTrack(ctx context.Context, inputs []string, outPath, bitrate string) error {
	switch len(inputs) {
	case 0:
		return ErrNoInput
	case 1:
		if err := fileutil.CopyFile(inputs[0], outPath); err != nil {
			discardPartial(outPath)
			return fmt.Errorf("%w: copy %s: %w", ErrExportFailed, filepath.Base(inputs[0]), err)
		}
		return nil
	}

	args := make([]string, 0, 2*len(inputs)+10)
	args = append(args, "-y")
	for _, input := range inputs {
		args = append(args, "-i", input)
	}
	args = append(args,
		"-filter_complex", fmt.Sprintf("amix=inputs=%d:normalize=0", len(inputs)),
		"-c:a", "libopus",
		"-b:a", bitrate,
		"-ac", "1",
		outPath,
	)
	e.logger.Debug("mixing tracks",
		logging.String("output", outPath),
		logging.Int("inputs", len(inputs)),
		logging.String("bitrate", bitrate),
	)
	if err := e.run(ctx, e.ffmpeg, args...); err != nil {
		discardPartial(outPath)
		return fmt.Errorf("%w: mix %s: %w", ErrExportFailed, filepath.Base(outPath), err)
	}
	return nil
}

// discardPartial removes whatever a failed export left at path so it is never
// picked up as an artifact.
func discardPartial(path string) {
	_ = os.Remove(path)
}

// writeConcatList writes an ffmpeg concat demuxer list with absolute paths.
func writeConcatList(chunks []string, listPath string) error {
	if err := os.MkdirAll(filepath.Dir(listPath), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	for _, chunk := range chunks {
		abs, err := filepath.Abs(chunk)
		if err != nil {
			return err
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(filepath.ToSlash(abs), "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(listPath, []byte(b.String()), 0o644)
}

// defaultCommandRunner executes ffmpeg and folds its output into the error.
func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), lastLines(string(output), 5))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
