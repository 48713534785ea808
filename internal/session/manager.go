package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"volo/internal/fileutil"
	"volo/internal/logging"
	"volo/internal/recording"
)

// ErrAlreadyFinalized is returned when Finalize runs twice for one session.
var ErrAlreadyFinalized = errors.New("session already finalized")

// AudioExporter produces compressed tracks from chunk files.
type AudioExporter interface {
	ConcatToTrack(ctx context.Context, chunks []string, outPath, bitrate string) error
	MixToTrack(ctx context.Context, inputs []string, outPath, bitrate string) error
}

// Options carries export settings.
type Options struct {
	TrackBitrate string
	MixBitrate   string
}

// Manager drives the per-guild session lifecycle.
type Manager struct {
	store    *recording.Store
	registry *Registry
	exporter AudioExporter
	opts     Options
	logger   *slog.Logger
}

// NewManager constructs a manager.
func NewManager(store *recording.Store, exporter AudioExporter, opts Options, logger *slog.Logger) *Manager {
	if opts.TrackBitrate == "" {
		opts.TrackBitrate = "32k"
	}
	if opts.MixBitrate == "" {
		opts.MixBitrate = "48k"
	}
	return &Manager{
		store:    store,
		registry: NewRegistry(),
		exporter: exporter,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "session"),
	}
}

// FinalizeResult describes what Finalize produced.
type FinalizeResult struct {
	TranscriptPath string
	Tracks         []string
	MixedPath      string
	// ExportErr is set when audio export failed. The transcript is still valid.
	ExportErr error
	// Artifacts lists the deliverable files that exist after finalization.
	Artifacts []string
	Duration  time.Duration
}

// Start creates and registers a session for the guild.
func (m *Manager) Start(ctx context.Context, guildID string) (*recording.Session, error) {
	s, err := m.registry.Start(guildID, func() (*recording.Session, error) {
		return m.store.Create(guildID)
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("recording session started",
		logging.Guild(guildID),
		logging.Session(s.ID),
		logging.String("path", s.RootDir),
		logging.String(logging.FieldEventType, "session_started"),
	)
	return s, nil
}

// Stop removes the guild's active session and hands it to the caller for
// finalization.
func (m *Manager) Stop(ctx context.Context, guildID string) (*recording.Session, error) {
	s, err := m.registry.Stop(guildID)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("recording session stopped",
		logging.Guild(guildID),
		logging.Session(s.ID),
		logging.Int("lines", len(s.Lines())),
		logging.String(logging.FieldEventType, "session_stopped"),
	)
	return s, nil
}

// Get returns the guild's active session.
func (m *Manager) Get(guildID string) (*recording.Session, bool) {
	return m.registry.Get(guildID)
}

// ActiveGuilds returns the guilds with an active session.
func (m *Manager) ActiveGuilds() []string {
	return m.registry.Guilds()
}

// Finalize writes the transcript and exports audio. Only a transcript write
// failure is returned as an error; audio problems are reported in
// FinalizeResult.ExportErr.
func (m *Manager) Finalize(ctx context.Context, s *recording.Session) (FinalizeResult, error) {
	if !s.MarkFinalized() {
		return FinalizeResult{}, ErrAlreadyFinalized
	}
	start := time.Now()
	logger := logging.WithContext(ctx, m.logger).With(logging.Session(s.ID))

	transcriptPath, err := s.WriteTranscript()
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("finalize %s: %w", s.ID, err)
	}
	result := FinalizeResult{TranscriptPath: transcriptPath}

	tracks, mixed, exportErr := m.ExportAudio(ctx, s)
	result.Tracks = tracks
	result.MixedPath = mixed
	result.ExportErr = exportErr
	result.Artifacts = Artifacts(s)
	result.Duration = time.Since(start)

	if exportErr != nil {
		logging.WarnWithContext(logger, "audio export failed; transcript kept", "audio_export_failed",
			logging.Error(exportErr),
			logging.Int("tracks", len(tracks)),
			logging.String(logging.FieldImpact, "some audio artifacts are missing"),
			logging.String(logging.FieldErrorHint, "run 'volo sessions export "+s.ID+"' after fixing ffmpeg"),
		)
	}
	logger.Info("recording session finalized",
		logging.String("transcript", transcriptPath),
		logging.Int("lines", len(s.Lines())),
		logging.Int("tracks", len(tracks)),
		logging.Bool("mixed", mixed != ""),
		logging.Duration("duration", result.Duration),
		logging.String(logging.FieldEventType, "session_finalized"),
	)
	return result, nil
}

// ExportAudio concatenates every speaker's chunks into a track and mixes the
// tracks. A failing speaker does not prevent the others from being exported;
// all failures are joined into the returned error. With no speaker tracks the
// mix is skipped.
func (m *Manager) ExportAudio(ctx context.Context, s *recording.Session) ([]string, string, error) {
	logger := logging.WithContext(ctx, m.logger).With(logging.Session(s.ID))
	speakers, err := s.Speakers()
	if err != nil {
		return nil, "", err
	}

	var errs []error
	tracks := make([]string, 0, len(speakers))
	for _, speaker := range speakers {
		chunks, err := s.Chunks(speaker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		name, ok := s.DisplayName(speaker)
		if !ok {
			name = speaker
		}
		out := s.TrackPath(speaker, name)
		if err := m.exporter.ConcatToTrack(ctx, chunks, out, m.opts.TrackBitrate); err != nil {
			logger.Error("speaker track export failed",
				logging.String("speaker_id", speaker),
				logging.Error(err),
				logging.String(logging.FieldEventType, "track_export_failed"),
				logging.String(logging.FieldErrorHint, "check ffmpeg output in the log"),
			)
			errs = append(errs, err)
			continue
		}
		logger.Debug("speaker track exported",
			logging.String("speaker_id", speaker),
			logging.String("path", out),
			logging.Int("chunks", len(chunks)),
		)
		tracks = append(tracks, out)
	}

	if len(tracks) == 0 {
		logging.WarnWithContext(logger, "no speaker tracks produced; mix skipped", "mix_skipped",
			logging.Int("speakers", len(speakers)),
			logging.String(logging.FieldImpact, "no audio artifacts for this session"),
			logging.String(logging.FieldErrorHint, "check that the transcriber delivers audio chunks"),
		)
		return tracks, "", errors.Join(errs...)
	}

	mixed := s.MixedPath()
	if err := m.exporter.MixToTrack(ctx, tracks, mixed, m.opts.MixBitrate); err != nil {
		logger.Error("mixed track export failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mix_export_failed"),
			logging.String(logging.FieldErrorHint, "check ffmpeg output in the log"),
		)
		errs = append(errs, err)
		mixed = ""
	}
	return tracks, mixed, errors.Join(errs...)
}

// Artifacts lists the session's deliverable files: transcript, mixed track,
// then per-speaker tracks sorted by name. Files that do not exist are omitted.
func Artifacts(s *recording.Session) []string {
	paths := []string{s.TranscriptPath(), s.MixedPath()}
	tracks, err := s.SpeakerTracks()
	if err == nil {
		paths = append(paths, tracks...)
	}
	return fileutil.ExistingFiles(paths...)
}

// RelativeArtifacts renders artifact paths relative to the session root.
func RelativeArtifacts(s *recording.Session, artifacts []string) []string {
	out := make([]string, 0, len(artifacts))
	for _, path := range artifacts {
		rel, err := filepath.Rel(s.RootDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		out = append(out, rel)
	}
	return out
}
