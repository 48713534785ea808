package capture

import (
	"errors"

	"volo/internal/playermap"
)

// ErrWorkerCrashed marks an unexpected capture worker termination.
var ErrWorkerCrashed = errors.New("capture worker crashed")

// Frame is one voice packet received for a speaker.
type Frame struct {
	UserID    string
	Sequence  uint16
	Timestamp uint32
	Opus      []byte
}

// FrameSink consumes voice packets.
type FrameSink interface {
	WriteFrame(Frame)
}

// Voice is the recording side of a guild's voice connection.
type Voice interface {
	StartRecording(sink FrameSink) error
	StopRecording()
}

// WorkerConfig is handed to a worker when it starts.
type WorkerConfig struct {
	Language    string
	Method      string
	DataLength  int
	MaxSpeakers int
	PlayerMap   playermap.Map
}

// Worker turns voice packets into transcript items pushed onto a Queue.
//
// Start launches background execution; onFailure is called at most once, from
// the worker's own goroutine, if it terminates without Stop or Close.
// Stop ends capture and waits for pending output to reach the queue. Close
// releases all resources and is safe to call more than once.
type Worker interface {
	FrameSink
	Start(onFailure func(error)) error
	SetLanguage(language string) error
	Stop()
	Close() error
}

// Factory constructs a worker for a guild bound to its output queue.
type Factory func(guildID string, queue *Queue, cfg WorkerConfig) (Worker, error)
