package handlers_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/http/handlers"
	"github.com/clipforge/clipforge/internal/service/progress"
)

func setupStreamServer(t *testing.T, hub *progress.Hub) *httptest.Server {
	t.Helper()
	router := chi.NewRouter()
	handler := handlers.NewProgressHandler(hub, testLogger())
	handler.SetHeartbeatInterval(time.Hour)
	handler.RegisterSSE(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// readFrames consumes the stream until it closes, returning every data
// frame decoded in order.
func readFrames(t *testing.T, reader *bufio.Reader) []progress.JobProgress {
	t.Helper()
	var frames []progress.JobProgress
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return frames
		}
		line = strings.TrimRight(line, "\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var p progress.JobProgress
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &p))
		frames = append(frames, p)
	}
}

func TestStream_UnknownJob(t *testing.T) {
	srv := setupStreamServer(t, progress.NewHub(testLogger()))

	resp, err := http.Get(srv.URL + "/api/jobs/nope/progress")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStream_ReplayThenEventsUntilTerminal(t *testing.T) {
	hub := progress.NewHub(testLogger())
	hub.CreateWithID("job-1", 2)
	srv := setupStreamServer(t, hub)

	resp, err := http.Get(srv.URL + "/api/jobs/job-1/progress")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// The preamble confirms the listener is attached before publishing.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ":connected\n", line)

	hub.Publish("job-1", progress.JobProgress{
		Status:      progress.StatusProcessing,
		CurrentClip: 1,
		TotalClips:  2,
		Message:     "Processing clip 1/2",
	})
	hub.Publish("job-1", progress.JobProgress{
		Status:     progress.StatusDone,
		TotalClips: 2,
		Files:      []string{"My_Video_clip1_1m40s.mp4"},
	})

	frames := readFrames(t, reader)
	require.Len(t, frames, 3)
	assert.Equal(t, progress.StatusDownloading, frames[0].Status)
	assert.Equal(t, progress.StatusProcessing, frames[1].Status)
	assert.Equal(t, progress.StatusDone, frames[2].Status)
	assert.Equal(t, []string{"My_Video_clip1_1m40s.mp4"}, frames[2].Files)
}

func TestStream_BatchRouteSharesHub(t *testing.T) {
	hub := progress.NewHub(testLogger())
	hub.CreateWithID("batch-1", 0)
	srv := setupStreamServer(t, hub)

	resp, err := http.Get(srv.URL + "/api/batch/batch-1/progress")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ":connected\n", line)

	hub.Publish("batch-1", progress.JobProgress{
		Status: progress.StatusError,
		Error:  "all videos failed",
	})

	frames := readFrames(t, reader)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, progress.StatusError, last.Status)
	assert.Equal(t, "all videos failed", last.Error)
}
