// Package audio wraps the ffmpeg invocations that turn per-speaker WAV chunks
// into Opus tracks and mix those tracks into a single recording.
package audio
