package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/media/downloader"
	"github.com/clipforge/clipforge/internal/media/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/reframe"
	"github.com/clipforge/clipforge/internal/service/progress"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMedia struct {
	mu          sync.Mutex
	info        models.VideoInfo
	infoErr     error
	sectionErr  error
	downloadErr error
	subs        []models.SubtitleEntry
	subsErr     error
	fullDir     string

	sectionCalls int
	fullCalls    int
	subsCalls    int
}

func (f *fakeMedia) Info(context.Context, string) (models.VideoInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeMedia) DownloadSection(_ context.Context, _ string, _, _ float64, _ int, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sectionCalls++
	if f.sectionErr != nil {
		return f.sectionErr
	}
	return os.WriteFile(dest, []byte("v"), 0o644)
}

func (f *fakeMedia) Download(context.Context, string, int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullCalls++
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	path := filepath.Join(f.fullDir, "full_"+f.info.ID+".mp4")
	if err := os.WriteFile(path, []byte("v"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeMedia) Subtitles(context.Context, string, string) ([]models.SubtitleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subsCalls++
	return f.subs, f.subsErr
}

type fakeTranscoder struct {
	mu       sync.Mutex
	runs     [][]string
	failWhen func(args []string) error
	probe    ffmpeg.MediaProbe
}

func (f *fakeTranscoder) Run(_ context.Context, _ time.Duration, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recorded := make([]string, len(args))
	copy(recorded, args)
	f.runs = append(f.runs, recorded)
	if f.failWhen != nil {
		if err := f.failWhen(args); err != nil {
			return "", err
		}
	}
	// Every builder puts the output path last.
	return "", os.WriteFile(args[len(args)-1], []byte("f"), 0o644)
}

func (f *fakeTranscoder) Probe(context.Context, string) (ffmpeg.MediaProbe, error) {
	return f.probe, nil
}

func (f *fakeTranscoder) runWith(sub string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.runs {
		for _, a := range run {
			if strings.Contains(a, sub) {
				return run
			}
		}
	}
	return nil
}

func newTestOrchestrator(t *testing.T, media *fakeMedia, trans *fakeTranscoder) (*Orchestrator, *progress.Hub) {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "output"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "temp"), 0o755))
	media.fullDir = filepath.Join(base, "temp")

	hub := progress.NewHub(discardLogger())
	o := New(Options{
		Media:    media,
		FFmpeg:   trans,
		Reframer: reframe.NewAnalyzer(discardLogger()),
		Hub:      hub,
		Jobs: config.JobsConfig{
			MaxConcurrent:    1,
			DownloadTimeout:  time.Minute,
			AnalysisTimeout:  time.Minute,
			TranscodeTimeout: time.Minute,
			SubtitleTimeout:  time.Minute,
		},
		Storage: config.StorageConfig{BaseDir: base, OutputDir: "output", TempDir: "temp"},
		Logger:  discardLogger(),
	})
	o.hasAudio = func(string) (bool, error) { return true, nil }
	return o, hub
}

// holdSlot occupies the single worker slot so a submitted job cannot start
// until the returned release function is called. Lets tests attach a
// listener before the first event.
func holdSlot(o *Orchestrator) func() {
	o.slots <- struct{}{}
	return func() { <-o.slots }
}

func drainJob(t *testing.T, l *progress.Listener) []progress.JobProgress {
	t.Helper()
	var got []progress.JobProgress
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p, ok := <-l.Events():
			if !ok {
				return got
			}
			got = append(got, p)
		case <-timeout:
			t.Fatal("job stream never closed")
		}
	}
}

func twoClipRequest() models.CutRequest {
	return models.CutRequest{
		URL: "https://example.com/v",
		Segments: []models.Segment{
			{ID: "seg-a", StartS: 100, EndS: 140},
			{ID: "seg-b", StartS: 200, EndS: 230},
		},
		CropMode:   models.CropCenter,
		VideoTitle: "My Video",
	}
}

func TestSubmit_InvalidRequest(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeMedia{}, &fakeTranscoder{})
	_, err := o.Submit(models.CutRequest{})
	assert.ErrorIs(t, err, models.ErrURLRequired)
}

func TestJob_PartialFetchHappyPath(t *testing.T) {
	media := &fakeMedia{info: models.VideoInfo{ID: "vid1", Title: "ignored", DurationS: 600}}
	trans := &fakeTranscoder{}
	o, hub := newTestOrchestrator(t, media, trans)

	release := holdSlot(o)
	id, err := o.Submit(twoClipRequest())
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)
	release()

	events := drainJob(t, l)
	require.Len(t, events, 6)

	assert.Equal(t, progress.StatusDownloading, events[0].Status, "replayed initial snapshot")
	assert.Equal(t, "Downloading clip 1/2: 1:40 → 2:20", events[1].Message)
	assert.Equal(t, progress.StatusProcessing, events[2].Status)
	assert.Equal(t, 2, events[3].CurrentClip)

	final := events[len(events)-1]
	require.Equal(t, progress.StatusDone, final.Status)
	require.Equal(t, []string{
		"My_Video_clip1_1m40s.mp4",
		"My_Video_clip2_3m20s.mp4",
	}, final.Files)

	// currentClip never goes backwards.
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].CurrentClip, events[i-1].CurrentClip)
	}

	assert.Equal(t, 2, media.sectionCalls)
	assert.Equal(t, 0, media.fullCalls)

	// Seek offset is relative to the buffered partial artifact.
	run := trans.runWith("My_Video_clip1_1m40s.mp4")
	require.NotNil(t, run)
	assert.Contains(t, run, "-ss")
	assert.Contains(t, run, "3.000")

	for _, f := range final.Files {
		assert.FileExists(t, filepath.Join(o.outputDir, f))
	}
}

func TestJob_PartialUnsupportedFallsBackToFull(t *testing.T) {
	media := &fakeMedia{
		info:       models.VideoInfo{ID: "vid2", Title: "T", DurationS: 600},
		sectionErr: downloader.ErrPartialUnsupported,
	}
	trans := &fakeTranscoder{}
	o, hub := newTestOrchestrator(t, media, trans)

	id, err := o.Submit(twoClipRequest())
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)

	events := drainJob(t, l)
	final := events[len(events)-1]
	require.Equal(t, progress.StatusDone, final.Status)
	require.Len(t, final.Files, 2)

	assert.Equal(t, 1, media.fullCalls, "full download cached across clips")

	// Seeks use the absolute segment start within the full file.
	run := trans.runWith("clip1")
	require.NotNil(t, run)
	assert.Contains(t, run, "100.000")

	// The cached full video is removed when the job completes.
	fullPath := filepath.Join(media.fullDir, "full_vid2.mp4")
	require.Eventually(t, func() bool {
		_, err := os.Stat(fullPath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJob_MissingAudioFallsBackToFull(t *testing.T) {
	media := &fakeMedia{info: models.VideoInfo{ID: "vid3", Title: "T", DurationS: 600}}
	trans := &fakeTranscoder{}
	o, hub := newTestOrchestrator(t, media, trans)
	o.hasAudio = func(string) (bool, error) { return false, nil }

	id, err := o.Submit(twoClipRequest())
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)

	events := drainJob(t, l)
	require.Equal(t, progress.StatusDone, events[len(events)-1].Status)
	assert.Equal(t, 1, media.fullCalls)
}

func TestJob_ClipFailureSkipsToNext(t *testing.T) {
	media := &fakeMedia{info: models.VideoInfo{ID: "vid4", Title: "T", DurationS: 600}}
	trans := &fakeTranscoder{
		failWhen: func(args []string) error {
			if strings.Contains(args[len(args)-1], "clip1") {
				return errors.New("encoder blew up")
			}
			return nil
		},
	}
	o, hub := newTestOrchestrator(t, media, trans)

	id, err := o.Submit(twoClipRequest())
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)

	events := drainJob(t, l)
	final := events[len(events)-1]
	require.Equal(t, progress.StatusDone, final.Status)
	require.Len(t, final.Files, 1)
	assert.Contains(t, final.Files[0], "clip2")
}

func TestJob_AllClipsFailed(t *testing.T) {
	media := &fakeMedia{
		info:       models.VideoInfo{ID: "vid5", Title: "T", DurationS: 600},
		sectionErr: errors.New("network down"),
	}
	o, hub := newTestOrchestrator(t, media, &fakeTranscoder{})

	id, err := o.Submit(twoClipRequest())
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)

	events := drainJob(t, l)
	final := events[len(events)-1]
	assert.Equal(t, progress.StatusError, final.Status)
	assert.Equal(t, "all clips failed", final.Error)
	assert.Equal(t, 0, media.fullCalls, "a hard section error is not a fallback trigger")
}

func TestJob_InfoFailureIsTerminal(t *testing.T) {
	media := &fakeMedia{infoErr: errors.New("video unavailable")}
	o, hub := newTestOrchestrator(t, media, &fakeTranscoder{})

	id, err := o.Submit(twoClipRequest())
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)

	events := drainJob(t, l)
	final := events[len(events)-1]
	assert.Equal(t, progress.StatusError, final.Status)
	assert.Contains(t, final.Error, "fetching video info")
}

func TestJob_CancelBeforeFirstClip(t *testing.T) {
	media := &fakeMedia{info: models.VideoInfo{ID: "vid6", Title: "T", DurationS: 600}}
	o, hub := newTestOrchestrator(t, media, &fakeTranscoder{})

	release := holdSlot(o)
	id, err := o.Submit(twoClipRequest())
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)
	require.NoError(t, o.Cancel(id))
	release()

	events := drainJob(t, l)
	final := events[len(events)-1]
	assert.Equal(t, progress.StatusError, final.Status)
	assert.Equal(t, "cancelled", final.Error)
	assert.Equal(t, 0, media.sectionCalls)
}

func TestJob_CaptionsBurned(t *testing.T) {
	media := &fakeMedia{
		info: models.VideoInfo{ID: "vid7", Title: "T", DurationS: 600},
		subs: []models.SubtitleEntry{
			{StartS: 98, EndS: 104, Text: "hello"},
			{StartS: 110, EndS: 115, Text: "world"},
		},
	}
	trans := &fakeTranscoder{}
	o, hub := newTestOrchestrator(t, media, trans)

	req := twoClipRequest()
	req.Captions = models.CaptionOptions{Enabled: true, Preset: "classic"}
	id, err := o.Submit(req)
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)

	events := drainJob(t, l)
	final := events[len(events)-1]
	require.Equal(t, progress.StatusDone, final.Status)

	var sawCaptioning bool
	for _, e := range events {
		if e.Status == progress.StatusCaptioning {
			sawCaptioning = true
		}
	}
	assert.True(t, sawCaptioning)

	burn := trans.runWith("ass=")
	require.NotNil(t, burn, "caption burn pass invoked")
	assert.Contains(t, burn, "copy")

	assert.Equal(t, 1, media.subsCalls, "full-video subtitles fetched once per job")
	assert.FileExists(t, filepath.Join(o.outputDir, final.Files[0]))
}

func TestJob_EditedSubtitlesSkipFetch(t *testing.T) {
	media := &fakeMedia{info: models.VideoInfo{ID: "vid8", Title: "T", DurationS: 600}}
	trans := &fakeTranscoder{}
	o, hub := newTestOrchestrator(t, media, trans)

	req := models.CutRequest{
		URL:        "https://example.com/v",
		Segments:   []models.Segment{{ID: "seg-a", StartS: 100, EndS: 140}},
		CropMode:   models.CropCenter,
		VideoTitle: "T",
		Captions:   models.CaptionOptions{Enabled: true, Preset: "classic"},
		EditedSubtitles: map[string][]models.SubtitleEntry{
			"seg-a": {{StartS: 0, EndS: 4, Text: "edited"}},
		},
	}
	id, err := o.Submit(req)
	require.NoError(t, err)
	l, err := hub.Attach(id)
	require.NoError(t, err)

	events := drainJob(t, l)
	require.Equal(t, progress.StatusDone, events[len(events)-1].Status)
	assert.Equal(t, 0, media.subsCalls)
	assert.NotNil(t, trans.runWith("ass="))
}
