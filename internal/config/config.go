package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SessionsDir   string `toml:"sessions_dir"`
	ExportDir     string `toml:"export_dir"`
	LogDir        string `toml:"log_dir"`
	PlayerMapFile string `toml:"player_map_file"`
}

// Discord contains chat platform credentials and presence settings.
type Discord struct {
	Token      string   `toml:"token"`
	GuildIDs   []string `toml:"guild_ids"`
	StatusText string   `toml:"status_text"`
}

// Recording contains session timing and audio export settings.
type Recording struct {
	ChunkSeconds         int    `toml:"chunk_seconds"`
	Language             string `toml:"language"`
	TimeZone             string `toml:"time_zone"`
	TrackBitrate         string `toml:"track_bitrate"`
	MixBitrate           string `toml:"mix_bitrate"`
	RetryDelaySeconds    int    `toml:"retry_delay_seconds"`
	DrainIntervalSeconds int    `toml:"drain_interval_seconds"`
	FFmpegBinary         string `toml:"ffmpeg_binary"`
}

// Capture configures the transcriber sidecar started once per guild.
type Capture struct {
	Command            string   `toml:"command"`
	Args               []string `toml:"args"`
	Method             string   `toml:"method"`
	DataLength         int      `toml:"data_length"`
	MaxSpeakers        int      `toml:"max_speakers"`
	StopTimeoutSeconds int      `toml:"stop_timeout_seconds"`
}

// Delivery contains artifact upload settings.
type Delivery struct {
	UploadTimeoutSeconds int   `toml:"upload_timeout_seconds"`
	MaxFileBytes         int64 `toml:"max_file_bytes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	SessionStarted   bool   `toml:"session_started"`
	SessionFinalized bool   `toml:"session_finalized"`
	DeliveryFallback bool   `toml:"delivery_fallback"`
	WorkerCrashed    bool   `toml:"worker_crashed"`
	Errors           bool   `toml:"errors"`
}

// Archive configures optional S3-compatible archival of finalized sessions.
type Archive struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Events configures optional Kafka lifecycle events.
type Events struct {
	Brokers             []string `toml:"brokers"`
	Topic               string   `toml:"topic"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Volo.
//
// Configuration sections by subsystem:
//   - Paths: session tree, zip exports, logs, player map
//   - Discord: bot token and command registration scope
//   - Recording: chunk length, language, time zone, bitrates, retry timing
//   - Capture: transcriber sidecar command line
//   - Delivery: upload timeouts and size limit
//   - Notifications: ntfy push notification settings
//   - Archive: MinIO/S3 archival of finalized sessions
//   - Events: Kafka lifecycle events
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Discord       Discord       `toml:"discord"`
	Recording     Recording     `toml:"recording"`
	Capture       Capture       `toml:"capture"`
	Delivery      Delivery      `toml:"delivery"`
	Notifications Notifications `toml:"notifications"`
	Archive       Archive       `toml:"archive"`
	Events        Events        `toml:"events"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/volo/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("volo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for bot operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SessionsDir, c.Paths.ExportDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for audio export.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Recording.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// ChunkDuration is the audio length represented by one transcribed chunk.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Recording.ChunkSeconds) * time.Second
}

// RetryDelay is the fixed delay before a crashed capture worker is restarted.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Recording.RetryDelaySeconds) * time.Second
}

// DrainInterval is the cadence of the live transcript drain while recording.
func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.Recording.DrainIntervalSeconds) * time.Second
}

// StopTimeout bounds how long a capture sidecar may take to flush and exit.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Capture.StopTimeoutSeconds) * time.Second
}

// UploadTimeout bounds a single artifact upload.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Delivery.UploadTimeoutSeconds) * time.Second
}

// Location resolves the time zone used to derive session identifiers.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Recording.TimeZone)
	if name == "" {
		name = defaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("recording.time_zone %q: %w", name, err)
	}
	return loc, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
