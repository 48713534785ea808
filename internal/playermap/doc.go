// Package playermap persists the mapping from chat user ids to player and
// character names that is handed to the transcriber.
package playermap
