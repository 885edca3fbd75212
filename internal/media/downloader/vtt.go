package downloader

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge/internal/models"
)

// cueTimeRe matches a WebVTT cue timing line; the hour field is optional.
var cueTimeRe = regexp.MustCompile(`(?:(\d{1,2}):)?(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(?:(\d{1,2}):)?(\d{2}):(\d{2})\.(\d{3})`)

// inlineTagRe strips timing and styling tags from cue text, e.g. <c>, <00:00:01.000>.
var inlineTagRe = regexp.MustCompile(`<[^>]*>`)

// ParseWebVTT parses WebVTT subtitle content into ordered entries.
// Rolling auto-caption duplicates (the previous line repeated at the top of
// the next cue) are collapsed so each line appears once.
func ParseWebVTT(content string) []models.SubtitleEntry {
	var entries []models.SubtitleEntry
	var lastText string

	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")

		timeIdx := -1
		var m []string
		for i, line := range lines {
			if m = cueTimeRe.FindStringSubmatch(line); m != nil {
				timeIdx = i
				break
			}
		}
		if timeIdx < 0 || timeIdx == len(lines)-1 {
			continue
		}

		start := cueSeconds(m[1], m[2], m[3], m[4])
		end := cueSeconds(m[5], m[6], m[7], m[8])
		if end <= start {
			continue
		}

		var parts []string
		for _, line := range lines[timeIdx+1:] {
			text := strings.TrimSpace(inlineTagRe.ReplaceAllString(line, ""))
			if text == "" || text == lastText {
				continue
			}
			parts = append(parts, text)
		}
		if len(parts) == 0 {
			continue
		}
		text := strings.Join(parts, " ")
		lastText = parts[len(parts)-1]

		entries = append(entries, models.SubtitleEntry{
			StartS: start,
			EndS:   end,
			Text:   text,
		})
	}
	return entries
}

func cueSeconds(h, m, s, ms string) float64 {
	total := 0.0
	if h != "" {
		hv, _ := strconv.Atoi(h)
		total += float64(hv) * 3600
	}
	mv, _ := strconv.Atoi(m)
	sv, _ := strconv.Atoi(s)
	msv, _ := strconv.Atoi(ms)
	return total + float64(mv)*60 + float64(sv) + float64(msv)/1000
}
