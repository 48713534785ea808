// Package capture connects voice connections to transcription workers.
//
// A Worker receives voice packets and pushes transcript Items (Utterance or
// Raw) onto a Queue, which is the only state it shares with the rest of the
// process. ProcessWorker runs an external transcriber speaking newline
// delimited JSON. The Supervisor keeps one worker per guild and restarts a
// crashed worker after a fixed delay; the restart is an explicit task that a
// manual Stop or Close cancels.
package capture
