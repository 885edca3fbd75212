// Package timefmt formats video timestamps for progress messages, output
// filenames, and ASS caption events.
package timefmt

import (
	"fmt"
	"math"
)

// Clock formats seconds as "m:ss" (or "h:mm:ss" past one hour) for
// user-facing progress messages.
func Clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FileToken formats seconds as "{m}m{ss}s" for output filenames, e.g. 95s -> "1m35s".
func FileToken(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%dm%02ds", total/60, total%60)
}

// ASS formats seconds as "H:MM:SS.cc", the timestamp format used by ASS
// subtitle events. Centiseconds are truncated, not rounded, so an event never
// starts after its real time.
func ASS(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	cs := int(math.Floor((seconds - float64(total)) * 100))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
