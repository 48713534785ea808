// Package session tracks one active recording per guild and finalizes
// stopped sessions into a transcript and audio tracks.
//
// Registry holds the guild to session mapping behind a single mutex. Manager
// layers session creation and finalization on top: Finalize writes the
// transcript first and treats audio export failures as soft, so a valid
// transcript survives any ffmpeg problem.
package session
