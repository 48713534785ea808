package capture

import (
	"encoding/json"
	"strings"
)

const (
	msgConfig    = "config"
	msgAudio     = "audio"
	msgStop      = "stop"
	msgUtterance = "utterance"
	msgText      = "text"
	msgError     = "error"
)

type configMessage struct {
	Type        string                    `json:"type"`
	Language    string                    `json:"language"`
	Method      string                    `json:"method"`
	DataLength  int                       `json:"data_length"`
	MaxSpeakers int                       `json:"max_speakers"`
	PlayerMap   map[string]playerMapEntry `json:"player_map"`
}

type playerMapEntry struct {
	Player    string `json:"player"`
	Character string `json:"character"`
}

type audioMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Sequence  uint16 `json:"sequence"`
	Timestamp uint32 `json:"timestamp"`
	Opus      []byte `json:"opus"`
}

type stopMessage struct {
	Type string `json:"type"`
}

type workerMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	WavB64 string `json:"wav_b64"`
	Error  string `json:"error"`
}

func newConfigMessage(cfg WorkerConfig) configMessage {
	players := make(map[string]playerMapEntry, len(cfg.PlayerMap))
	for id, entry := range cfg.PlayerMap {
		players[id] = playerMapEntry{Player: entry.Player, Character: entry.Character}
	}
	return configMessage{
		Type:        msgConfig,
		Language:    cfg.Language,
		Method:      cfg.Method,
		DataLength:  cfg.DataLength,
		MaxSpeakers: cfg.MaxSpeakers,
		PlayerMap:   players,
	}
}

func newAudioMessage(frame Frame) audioMessage {
	return audioMessage{
		Type:      msgAudio,
		UserID:    frame.UserID,
		Sequence:  frame.Sequence,
		Timestamp: frame.Timestamp,
		Opus:      frame.Opus,
	}
}

// parseLine converts one line of worker output. It returns the queue item (nil
// when the line carries none) and a non-empty failure reason when the worker
// reported a fatal error.
func parseLine(line string) (Item, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, ""
	}
	var msg workerMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil || msg.Type == "" {
		return Raw(trimmed), ""
	}
	switch msg.Type {
	case msgUtterance:
		return Utterance{SpeakerID: msg.UserID, Text: msg.Text, Audio: msg.WavB64}, ""
	case msgText:
		return Raw(msg.Text), ""
	case msgError:
		reason := strings.TrimSpace(msg.Error)
		if reason == "" {
			reason = "worker reported an error"
		}
		return nil, reason
	default:
		return Raw(trimmed), ""
	}
}
