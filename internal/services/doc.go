// Package services defines shared utilities consumed by the recording
// components and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp guild IDs, session IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures from ffmpeg,
//     the capture sidecar, or remote services are classified consistently.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability, retries) stays uniform across the bot.
package services
