package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// timestampPattern matches "m:ss" and "h:mm:ss" tokens inside comment text.
var timestampPattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?::(\d{2}))?\b`)

// ParseTimestamp parses "h:mm:ss", "m:ss", or a bare integer second count.
// The second return value is false for anything else.
func ParseTimestamp(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		// Minute and second fields must be two digits below 60.
		if i > 0 && (len(part) != 2 || n > 59) {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// ExtractTimestamps finds every timestamp token in text and returns their
// values in seconds. Values beyond maxS are rejected.
func ExtractTimestamps(text string, maxS int) []int {
	matches := timestampPattern.FindAllStringSubmatch(text, -1)
	var out []int
	for _, m := range matches {
		token := m[0]
		secs, ok := ParseTimestamp(token)
		if !ok || secs > maxS {
			continue
		}
		out = append(out, secs)
	}
	return out
}
