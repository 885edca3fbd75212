package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// P9: timestamp token parsing.
func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"90", 90, true},
		{"0", 0, true},
		{"1:30", 90, true},
		{"0:05", 5, true},
		{"12:34", 754, true},
		{"1:02:03", 3723, true},
		{"10:00:00", 36000, true},
		{" 1:30 ", 90, true},
		{"1:75", 0, false},
		{"1:5", 0, false},
		{"1:02:60", 0, false},
		{"-5", 0, false},
		{"1:2:3:4", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1:-2", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseTimestamp(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestExtractTimestamps(t *testing.T) {
	text := "the bit at 1:30 is insane, also 12:05 and again at 1:02:03"
	got := ExtractTimestamps(text, 4000)
	assert.Equal(t, []int{90, 725, 3723}, got)
}

func TestExtractTimestamps_RejectsBeyondDuration(t *testing.T) {
	got := ExtractTimestamps("watch 2:00 and 59:59", 300)
	assert.Equal(t, []int{120}, got)
}

func TestExtractTimestamps_NoTokens(t *testing.T) {
	assert.Empty(t, ExtractTimestamps("great video, loved it", 600))
}
