package capture

// Item is one entry produced by a capture worker. It is either an Utterance
// or a Raw passthrough value.
type Item interface {
	isItem()
}

// Utterance is a transcribed segment attributed to one speaker. Audio holds
// the base64-encoded WAV chunk the text was transcribed from and may be empty.
type Utterance struct {
	SpeakerID string
	Text      string
	Audio     string
}

// Raw is opaque worker output that is surfaced as text only.
type Raw string

func (Utterance) isItem() {}

func (Raw) isItem() {}
