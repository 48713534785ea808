package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var bitratePattern = regexp.MustCompile(`^[1-9][0-9]*k$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return nil
}

// ValidateRuntime performs the additional checks required before the bot
// connects to the gateway.
func (c *Config) ValidateRuntime() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Discord.Token) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/volo/config.toml"
		}
		return fmt.Errorf("discord.token is required. Set DISCORD_BOT_TOKEN env var or edit %s (create with 'volo config init')", defaultPath)
	}
	if strings.TrimSpace(c.Capture.Command) == "" {
		return errors.New("capture.command must be set")
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.ChunkSeconds <= 0 {
		return errors.New("recording.chunk_seconds must be positive")
	}
	if _, err := time.LoadLocation(c.Recording.TimeZone); err != nil {
		return fmt.Errorf("recording.time_zone %q: %w", c.Recording.TimeZone, err)
	}
	if !bitratePattern.MatchString(c.Recording.TrackBitrate) {
		return fmt.Errorf("recording.track_bitrate %q must look like 32k", c.Recording.TrackBitrate)
	}
	if !bitratePattern.MatchString(c.Recording.MixBitrate) {
		return fmt.Errorf("recording.mix_bitrate %q must look like 48k", c.Recording.MixBitrate)
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"recording.retry_delay_seconds":    c.Recording.RetryDelaySeconds,
		"recording.drain_interval_seconds": c.Recording.DrainIntervalSeconds,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Endpoint == "" {
		return errors.New("archive.endpoint must be set when archive.enabled is true")
	}
	if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
		return errors.New("archive.access_key and archive.secret_key must be set when archive.enabled is true (or export MINIO_ACCESS_KEY/MINIO_SECRET_KEY)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
