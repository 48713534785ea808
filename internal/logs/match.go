package logs

import (
	"encoding/json"
	"strings"

	"volo/internal/logging"
)

// FieldMatcher returns a Match function that keeps lines carrying key=value,
// either as a JSON attribute or in the console format's "key=value" form.
func FieldMatcher(key, value string) func(string) bool {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return nil
	}
	plain := key + "=" + value
	quoted := key + "=\"" + value + "\""
	return func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "{") {
			var entry map[string]any
			if err := json.Unmarshal([]byte(trimmed), &entry); err == nil {
				got, ok := entry[key].(string)
				return ok && got == value
			}
		}
		return containsToken(line, plain) || strings.Contains(line, quoted)
	}
}

// containsToken reports whether token occurs delimited by whitespace or the
// line boundaries, so session_id=abc does not match session_id=abcd.
func containsToken(line, token string) bool {
	for start := 0; ; {
		idx := strings.Index(line[start:], token)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(token)
		before := idx == 0 || line[idx-1] == ' ' || line[idx-1] == '\t'
		after := end == len(line) || line[end] == ' ' || line[end] == '\t'
		if before && after {
			return true
		}
		start = idx + 1
	}
}

// SessionMatcher keeps lines that belong to one recording session. The
// console format prints the session as "component[id]:" instead of an
// attribute.
func SessionMatcher(sessionID string) func(string) bool {
	field := FieldMatcher(logging.FieldSessionID, sessionID)
	if field == nil {
		return nil
	}
	prefix := "[" + strings.TrimSpace(sessionID) + "]: "
	return func(line string) bool {
		return field(line) || strings.Contains(line, prefix)
	}
}
