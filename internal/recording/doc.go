// Package recording owns a session's on-disk artifact tree and the transcript
// assembled from capture output.
//
// A Store allocates session ids (timestamp in the configured zone, with
// numeric suffixes on collision) and creates the chunks/ and tracks/ layout.
// The Assembler drains a capture queue into a Session: every non-empty
// utterance consumes one session-wide chunk number, optionally persists its
// audio as chunks/<speaker>/chunk_NNNN.wav, and appends a line stamped with
// (chunk-1) * chunk duration.
package recording
