package jobs

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/clipforge/clipforge/pkg/timefmt"
)

const maxTitleLen = 50

// deaccent strips combining marks after compatibility decomposition, so
// accented titles reduce to plain ASCII letters where possible.
var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeTitle reduces a video title to a filesystem-safe token: accents
// folded, anything outside [A-Za-z0-9] collapsed to single underscores,
// truncated to 50 characters.
func SanitizeTitle(title string) string {
	folded, _, err := transform.String(deaccent, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	lastUnderscore := true
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	s := strings.Trim(b.String(), "_")
	if len(s) > maxTitleLen {
		s = strings.Trim(s[:maxTitleLen], "_")
	}
	if s == "" {
		return "clip"
	}
	return s
}

// OutputName builds the final clip filename from the video title, the
// 0-based clip index and the segment start time.
func OutputName(title string, clipIdx int, startS float64) string {
	return fmt.Sprintf("%s_clip%d_%s.mp4", SanitizeTitle(title), clipIdx+1, timefmt.FileToken(startS))
}
