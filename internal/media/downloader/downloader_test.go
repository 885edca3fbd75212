package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoArgs(t *testing.T) {
	args := infoArgs("https://example.com/watch?v=abc")
	assert.Contains(t, args, "--dump-single-json")
	assert.Contains(t, args, "--skip-download")
	assert.Contains(t, args, "--no-playlist")
	assert.Equal(t, "https://example.com/watch?v=abc", args[len(args)-1])
}

func TestCommentArgs(t *testing.T) {
	args := commentArgs("u", 150)
	assert.Contains(t, args, "--write-comments")
	assert.Contains(t, args, "youtube:max_comments=150;comment_sort=top")
}

func TestFormatSelector(t *testing.T) {
	assert.Equal(t, "bv*[height<=720]+ba/b[height<=720]", formatSelector(720))
}

func TestFullArgs(t *testing.T) {
	args := fullArgs("u", 1080, "/tmp/full_abc.mp4")
	assert.Contains(t, args, "bv*[height<=1080]+ba/b[height<=1080]")
	assert.Contains(t, args, "--merge-output-format")
	assert.NotContains(t, args, "--download-sections")
	assert.Contains(t, args, "/tmp/full_abc.mp4")
}

func TestSectionArgs(t *testing.T) {
	args := sectionArgs("u", 97.0, 143.5, 720, "/tmp/segment_0_abc.mp4")
	assert.Contains(t, args, "--download-sections")
	assert.Contains(t, args, "*97.0-143.5")
	assert.Contains(t, args, "--force-keyframes-at-cuts")
}

func TestSubtitleArgs_DefaultLanguage(t *testing.T) {
	args := subtitleArgs("u", "", "/tmp/subs_abc")
	assert.Contains(t, args, "--write-subs")
	assert.Contains(t, args, "--write-auto-subs")
	assert.Contains(t, args, "en.*,en")
}

func TestIsSectionRejection(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"yt-dlp: exit status 2: no such option: --download-sections", true},
		{"yt-dlp: exit status 1: ERROR: fragment 3 not found", false},
		{"yt-dlp: exit status 1: network timeout", false},
	}
	for _, tc := range cases {
		err := &stringError{tc.msg}
		assert.Equal(t, tc.want, isSectionRejection(err), tc.msg)
	}
}

type stringError struct{ s string }

func (e *stringError) Error() string { return e.s }
