package config

const (
	defaultSessionsDir          = "~/.local/share/volo/sessions"
	defaultExportDir            = "~/.local/share/volo/exports"
	defaultLogDir               = "~/.local/share/volo/logs"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultStatusText           = "Transcribing Audio to Text"
	defaultChunkSeconds         = 30
	defaultLanguage             = "auto"
	defaultTimeZone             = "Europe/Berlin"
	defaultTrackBitrate         = "32k"
	defaultMixBitrate           = "48k"
	defaultRetryDelaySeconds    = 5
	defaultDrainIntervalSeconds = 5
	defaultFFmpegBinary         = "ffmpeg"
	defaultCaptureCommand       = "volo-transcriber"
	defaultCaptureMethod        = "local"
	defaultCaptureDataLength    = 50000
	defaultCaptureMaxSpeakers   = 10
	defaultCaptureStopTimeout   = 10
	defaultUploadTimeout        = 60
	defaultNotifyTimeout        = 10
	defaultArchiveBucket        = "volo-sessions"
	defaultEventsTopic          = "volo.sessions"
	defaultEventsWriteTimeout   = 10
)

// Default returns a Config populated with repository defaults.
//
// Chunk length and language stay zero-valued here so that normalize can
// honour CHUNK_SECONDS and TRANSCRIPTION_LANGUAGE before falling back.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionsDir: defaultSessionsDir,
			ExportDir:   defaultExportDir,
			LogDir:      defaultLogDir,
		},
		Discord: Discord{
			StatusText: defaultStatusText,
		},
		Recording: Recording{
			TimeZone:             defaultTimeZone,
			TrackBitrate:         defaultTrackBitrate,
			MixBitrate:           defaultMixBitrate,
			RetryDelaySeconds:    defaultRetryDelaySeconds,
			DrainIntervalSeconds: defaultDrainIntervalSeconds,
			FFmpegBinary:         defaultFFmpegBinary,
		},
		Capture: Capture{
			Command:            defaultCaptureCommand,
			DataLength:         defaultCaptureDataLength,
			MaxSpeakers:        defaultCaptureMaxSpeakers,
			StopTimeoutSeconds: defaultCaptureStopTimeout,
		},
		Delivery: Delivery{
			UploadTimeoutSeconds: defaultUploadTimeout,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyTimeout,
			SessionStarted:   true,
			SessionFinalized: true,
			DeliveryFallback: true,
			WorkerCrashed:    true,
			Errors:           true,
		},
		Archive: Archive{
			Bucket: defaultArchiveBucket,
		},
		Events: Events{
			Topic:               defaultEventsTopic,
			WriteTimeoutSeconds: defaultEventsWriteTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// DefaultCaptureCommand is the transcriber sidecar used when capture.command is unset.
const DefaultCaptureCommand = defaultCaptureCommand
