// Package bot implements the recording commands independently of the chat
// SDK.
//
// A Bot keeps per-guild state (voice connection, transcription queue,
// language, recording flag) and drives the session pipeline: SessionManager
// for start/stop/finalize, the capture Supervisor for the transcriber worker,
// the Assembler for queue drains and the Deliverer for posting artifacts.
// Commands for one guild are serialized; different guilds run concurrently.
//
// The chat client is reached only through Platform, VoiceConn and Responder so
// the command behaviour can be exercised with fakes. Lifecycle milestones are
// published to Observers (history, notifications, events, archive).
package bot
