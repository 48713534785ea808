// Package config loads, normalizes, and validates Volo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables the bot
// has always accepted (DISCORD_BOT_TOKEN, CHUNK_SECONDS,
// TRANSCRIPTION_LANGUAGE, TRANSCRIPTION_METHOD, PLAYER_MAP_FILE_PATH). The
// Config type centralizes every knob the bot and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
