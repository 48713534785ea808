// Package language provides language code normalization for transcription.
//
// It maps the choices users type into the language command (auto, de, eng,
// word forms) onto the ISO 639-1 codes the transcriber expects and back to
// the labels shown in replies.
package language
