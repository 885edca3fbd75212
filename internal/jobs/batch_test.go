package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/analysis"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/service/progress"
)

type fakeBatchAnalyzer struct {
	mu      sync.Mutex
	results map[string]*analysis.Result
	errs    map[string]error
	gotOpts analysis.DetectOptions
}

func (f *fakeBatchAnalyzer) Analyze(_ context.Context, url string, opts analysis.DetectOptions) (*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOpts = opts
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.results[url], nil
}

func batchResult(title string) *analysis.Result {
	return &analysis.Result{
		Video:    models.VideoInfo{ID: "v", Title: title, DurationS: 600},
		Segments: []models.Segment{{ID: "s1", StartS: 100, EndS: 140}},
	}
}

func newTestBatchRunner(t *testing.T, analyzer *fakeBatchAnalyzer) (*BatchRunner, *progress.Hub) {
	t.Helper()
	media := &fakeMedia{info: models.VideoInfo{ID: "v", Title: "T", DurationS: 600}}
	o, hub := newTestOrchestrator(t, media, &fakeTranscoder{})
	return NewBatchRunner(analyzer, o, hub, analysis.DefaultDetectOptions(), discardLogger()), hub
}

func TestBatchSubmit_Validation(t *testing.T) {
	b, _ := newTestBatchRunner(t, &fakeBatchAnalyzer{})

	_, err := b.Submit(BatchRequest{})
	assert.ErrorIs(t, err, models.ErrURLRequired)

	urls := make([]string, MaxBatchURLs+1)
	for i := range urls {
		urls[i] = "https://example.com/v"
	}
	_, err = b.Submit(BatchRequest{URLs: urls})
	assert.ErrorIs(t, err, models.ErrBatchTooLarge)

	_, err = b.Submit(BatchRequest{URLs: urls[:1], CropMode: "diagonal"})
	assert.ErrorIs(t, err, models.ErrInvalidCropMode)
}

func TestBatch_AllURLsSucceed(t *testing.T) {
	analyzer := &fakeBatchAnalyzer{results: map[string]*analysis.Result{
		"u1": batchResult("First"),
		"u2": batchResult("Second"),
	}}
	b, hub := newTestBatchRunner(t, analyzer)

	id, err := b.Submit(BatchRequest{URLs: []string{"u1", "u2"}, CropMode: models.CropCenter})
	require.NoError(t, err)

	l, err := hub.Attach(id)
	require.NoError(t, err)
	events := drainJob(t, l)

	final := events[len(events)-1]
	require.Equal(t, progress.StatusDone, final.Status)
	require.Len(t, final.Files, 2)
	assert.Contains(t, final.Files[0], "First_clip1")
	assert.Contains(t, final.Files[1], "Second_clip1")
}

func TestBatch_FailedURLSkipped(t *testing.T) {
	analyzer := &fakeBatchAnalyzer{
		results: map[string]*analysis.Result{"u2": batchResult("Good")},
		errs:    map[string]error{"u1": errors.New("extractor broken")},
	}
	b, hub := newTestBatchRunner(t, analyzer)

	id, err := b.Submit(BatchRequest{URLs: []string{"u1", "u2"}})
	require.NoError(t, err)

	l, err := hub.Attach(id)
	require.NoError(t, err)
	events := drainJob(t, l)

	final := events[len(events)-1]
	require.Equal(t, progress.StatusDone, final.Status)
	require.Len(t, final.Files, 1)
	assert.Contains(t, final.Files[0], "Good_clip1")
}

func TestBatch_AllURLsFail(t *testing.T) {
	analyzer := &fakeBatchAnalyzer{errs: map[string]error{
		"u1": errors.New("broken"),
		"u2": errors.New("broken"),
	}}
	b, hub := newTestBatchRunner(t, analyzer)

	id, err := b.Submit(BatchRequest{URLs: []string{"u1", "u2"}})
	require.NoError(t, err)

	l, err := hub.Attach(id)
	require.NoError(t, err)
	events := drainJob(t, l)

	final := events[len(events)-1]
	assert.Equal(t, progress.StatusError, final.Status)
	assert.Equal(t, "all videos failed", final.Error)
}

func TestBatch_SettingsMergedWithDefaults(t *testing.T) {
	analyzer := &fakeBatchAnalyzer{results: map[string]*analysis.Result{"u1": batchResult("X")}}
	b, hub := newTestBatchRunner(t, analyzer)

	id, err := b.Submit(BatchRequest{
		URLs:     []string{"u1"},
		Settings: &analysis.DetectOptions{TopN: 3},
	})
	require.NoError(t, err)

	l, err := hub.Attach(id)
	require.NoError(t, err)
	drainJob(t, l)

	assert.Equal(t, 3, analyzer.gotOpts.TopN)
	assert.Equal(t, 30.0, analyzer.gotOpts.MinGapS, "unset fields take configured defaults")
}
