package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"volo/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDiscord()
	if err := c.normalizeRecording(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeDelivery()
	c.normalizeArchive()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.SessionsDir) == "" {
		c.Paths.SessionsDir = defaultSessionsDir
	}
	if c.Paths.SessionsDir, err = expandPath(c.Paths.SessionsDir); err != nil {
		return fmt.Errorf("paths.sessions_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.PlayerMapFile = strings.TrimSpace(c.Paths.PlayerMapFile)
	if c.Paths.PlayerMapFile == "" {
		if value, ok := os.LookupEnv("PLAYER_MAP_FILE_PATH"); ok {
			c.Paths.PlayerMapFile = strings.TrimSpace(value)
		}
	}
	if c.Paths.PlayerMapFile, err = expandPath(c.Paths.PlayerMapFile); err != nil {
		return fmt.Errorf("paths.player_map_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeDiscord() {
	c.Discord.Token = strings.TrimSpace(c.Discord.Token)
	if c.Discord.Token == "" {
		if value, ok := os.LookupEnv("DISCORD_BOT_TOKEN"); ok {
			c.Discord.Token = strings.TrimSpace(value)
		}
	}
	ids := make([]string, 0, len(c.Discord.GuildIDs))
	seen := make(map[string]struct{}, len(c.Discord.GuildIDs))
	for _, id := range c.Discord.GuildIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	c.Discord.GuildIDs = ids
	c.Discord.StatusText = strings.TrimSpace(c.Discord.StatusText)
}

func (c *Config) normalizeRecording() error {
	if c.Recording.ChunkSeconds == 0 {
		c.Recording.ChunkSeconds = defaultChunkSeconds
		if value, ok := os.LookupEnv("CHUNK_SECONDS"); ok && strings.TrimSpace(value) != "" {
			seconds, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("CHUNK_SECONDS: %w", err)
			}
			c.Recording.ChunkSeconds = seconds
		}
	}

	lang := strings.TrimSpace(c.Recording.Language)
	if lang == "" {
		if value, ok := os.LookupEnv("TRANSCRIPTION_LANGUAGE"); ok {
			lang = value
		}
	}
	if strings.TrimSpace(lang) == "" {
		lang = defaultLanguage
	}
	normalized, err := language.NormalizeTranscription(lang)
	if err != nil {
		return fmt.Errorf("recording.language: %w", err)
	}
	c.Recording.Language = normalized

	c.Recording.TimeZone = strings.TrimSpace(c.Recording.TimeZone)
	if c.Recording.TimeZone == "" {
		c.Recording.TimeZone = defaultTimeZone
	}
	c.Recording.TrackBitrate = strings.ToLower(strings.TrimSpace(c.Recording.TrackBitrate))
	if c.Recording.TrackBitrate == "" {
		c.Recording.TrackBitrate = defaultTrackBitrate
	}
	c.Recording.MixBitrate = strings.ToLower(strings.TrimSpace(c.Recording.MixBitrate))
	if c.Recording.MixBitrate == "" {
		c.Recording.MixBitrate = defaultMixBitrate
	}
	c.Recording.FFmpegBinary = strings.TrimSpace(c.Recording.FFmpegBinary)
	if c.Recording.FFmpegBinary == "" {
		c.Recording.FFmpegBinary = defaultFFmpegBinary
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Command = strings.TrimSpace(c.Capture.Command)
	if c.Capture.Command == "" {
		c.Capture.Command = defaultCaptureCommand
	}
	c.Capture.Method = strings.ToLower(strings.TrimSpace(c.Capture.Method))
	if c.Capture.Method == "" {
		if value, ok := os.LookupEnv("TRANSCRIPTION_METHOD"); ok {
			c.Capture.Method = strings.ToLower(strings.TrimSpace(value))
		}
	}
	// Anything other than openai runs the local model.
	if c.Capture.Method != "openai" {
		c.Capture.Method = defaultCaptureMethod
	}
	if c.Capture.DataLength <= 0 {
		c.Capture.DataLength = defaultCaptureDataLength
	}
	if c.Capture.MaxSpeakers <= 0 {
		c.Capture.MaxSpeakers = defaultCaptureMaxSpeakers
	}
	if c.Capture.StopTimeoutSeconds <= 0 {
		c.Capture.StopTimeoutSeconds = defaultCaptureStopTimeout
	}
}

func (c *Config) normalizeDelivery() {
	if c.Delivery.UploadTimeoutSeconds <= 0 {
		c.Delivery.UploadTimeoutSeconds = defaultUploadTimeout
	}
	if c.Delivery.MaxFileBytes < 0 {
		c.Delivery.MaxFileBytes = 0
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	c.Archive.AccessKey = strings.TrimSpace(c.Archive.AccessKey)
	if c.Archive.AccessKey == "" {
		if value, ok := os.LookupEnv("MINIO_ACCESS_KEY"); ok {
			c.Archive.AccessKey = strings.TrimSpace(value)
		}
	}
	c.Archive.SecretKey = strings.TrimSpace(c.Archive.SecretKey)
	if c.Archive.SecretKey == "" {
		if value, ok := os.LookupEnv("MINIO_SECRET_KEY"); ok {
			c.Archive.SecretKey = strings.TrimSpace(value)
		}
	}
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	if c.Archive.Bucket == "" {
		c.Archive.Bucket = defaultArchiveBucket
	}
	c.Archive.Region = strings.TrimSpace(c.Archive.Region)
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
}

func (c *Config) normalizeEvents() {
	brokers := c.Events.Brokers
	if len(brokers) == 0 {
		if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
			brokers = strings.Split(value, ",")
		}
	}
	cleaned := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			cleaned = append(cleaned, broker)
		}
	}
	c.Events.Brokers = cleaned
	c.Events.Topic = strings.TrimSpace(c.Events.Topic)
	if c.Events.Topic == "" {
		c.Events.Topic = defaultEventsTopic
	}
	if c.Events.WriteTimeoutSeconds <= 0 {
		c.Events.WriteTimeoutSeconds = defaultEventsWriteTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
