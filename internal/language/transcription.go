package language

import (
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
)

// Auto lets the transcriber detect the spoken language per utterance.
const Auto = "auto"

// NormalizeTranscription maps a user supplied transcription language to the
// value handed to the capture worker: "auto" or an ISO 639-1 code. Word forms
// and three-letter codes ("eng", "german") are accepted. Codes outside the
// built-in table are checked against the ISO 639 registry.
func NormalizeTranscription(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == Auto {
		return Auto, nil
	}
	if k := find(value); k != nil {
		return k.code, nil
	}
	base, err := xlanguage.ParseBase(value)
	if err != nil {
		return "", fmt.Errorf("unsupported transcription language %q", value)
	}
	code := base.String()
	if len(code) != 2 {
		return "", fmt.Errorf("transcription language %q has no two-letter code", value)
	}
	return code, nil
}

// DisplayTranscription renders a normalized transcription language the way
// the language command presents its choices.
func DisplayTranscription(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	switch code {
	case "":
		return Auto
	case "en":
		return "eng"
	default:
		return code
	}
}
