package progress

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// drain collects everything from a listener until its channel closes.
func drain(t *testing.T, l *Listener) []JobProgress {
	t.Helper()
	var got []JobProgress
	timeout := time.After(2 * time.Second)
	for {
		select {
		case p, ok := <-l.Events():
			if !ok {
				return got
			}
			got = append(got, p)
		case <-timeout:
			t.Fatal("listener channel never closed")
		}
	}
}

func TestCreateAndGet(t *testing.T) {
	h := newTestHub()
	id := h.Create(3)
	require.NotEmpty(t, id)

	p, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloading, p.Status)
	assert.Equal(t, 3, p.TotalClips)

	_, err = h.Get("01J0000000000000000000FAKE")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestAttach_ReplaysLatestSnapshot(t *testing.T) {
	h := newTestHub()
	id := h.Create(2)
	h.Publish(id, JobProgress{Status: StatusProcessing, CurrentClip: 1, TotalClips: 2})

	l, err := h.Attach(id)
	require.NoError(t, err)
	defer h.Detach(id, l)

	first := <-l.Events()
	assert.Equal(t, StatusProcessing, first.Status)
	assert.Equal(t, 1, first.CurrentClip)
}

func TestAttach_UnknownJob(t *testing.T) {
	h := newTestHub()
	_, err := h.Attach("nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestAttach_AfterTerminalGetsSnapshotThenClose(t *testing.T) {
	h := newTestHub()
	id := h.Create(1)
	h.Publish(id, JobProgress{Status: StatusDone, TotalClips: 1, Files: []string{"a.mp4"}})

	l, err := h.Attach(id)
	require.NoError(t, err)

	got := drain(t, l)
	require.Len(t, got, 1)
	assert.Equal(t, StatusDone, got[0].Status)
	assert.Equal(t, []string{"a.mp4"}, got[0].Files)
}

func TestPublish_TerminalClosesListeners(t *testing.T) {
	h := newTestHub()
	id := h.Create(1)

	l, err := h.Attach(id)
	require.NoError(t, err)

	h.Publish(id, JobProgress{Status: StatusProcessing, CurrentClip: 1, TotalClips: 1})
	h.Publish(id, JobProgress{Status: StatusDone, TotalClips: 1})

	got := drain(t, l)
	require.Len(t, got, 3, "initial snapshot plus two published events")
	assert.Equal(t, StatusDone, got[2].Status)

	// Publishing after the terminal event is ignored.
	h.Publish(id, JobProgress{Status: StatusProcessing})
	p, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, p.Status)
}

func TestPublish_DeadListenerDoesNotAffectSurvivor(t *testing.T) {
	h := newTestHub()
	id := h.Create(2)

	survivor, err := h.Attach(id)
	require.NoError(t, err)
	dead, err := h.Attach(id)
	require.NoError(t, err)

	h.Publish(id, JobProgress{Status: StatusAnalyzing, TotalClips: 2})

	// The dead listener disconnects midway and never reads again.
	h.Detach(id, dead)

	h.Publish(id, JobProgress{Status: StatusProcessing, CurrentClip: 1, TotalClips: 2})
	h.Publish(id, JobProgress{Status: StatusProcessing, CurrentClip: 2, TotalClips: 2})
	h.Publish(id, JobProgress{Status: StatusDone, TotalClips: 2, Files: []string{"a.mp4", "b.mp4"}})

	got := drain(t, survivor)
	require.Len(t, got, 5)
	assert.Equal(t, StatusDownloading, got[0].Status)
	assert.Equal(t, StatusAnalyzing, got[1].Status)
	assert.Equal(t, 1, got[2].CurrentClip)
	assert.Equal(t, 2, got[3].CurrentClip)
	assert.Equal(t, StatusDone, got[4].Status)
}

func TestPublish_SlowListenerDetached(t *testing.T) {
	h := newTestHub()
	id := h.Create(1)

	slow, err := h.Attach(id)
	require.NoError(t, err)

	// The replay snapshot occupies one slot; fill the rest and overflow.
	for i := 0; i < listenerBuffer; i++ {
		h.Publish(id, JobProgress{Status: StatusProcessing, CurrentClip: i})
	}

	got := drain(t, slow)
	assert.Len(t, got, listenerBuffer, "queue drained after forced detach")

	// The job itself keeps running.
	h.Publish(id, JobProgress{Status: StatusDone})
	p, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, p.Status)
}

func TestDetach_Idempotent(t *testing.T) {
	h := newTestHub()
	id := h.Create(1)

	l, err := h.Attach(id)
	require.NoError(t, err)

	h.Detach(id, l)
	h.Detach(id, l)
	h.Detach("nope", l)
}

func TestCancel(t *testing.T) {
	h := newTestHub()
	id := h.Create(1)

	assert.False(t, h.Cancelled(id))
	require.NoError(t, h.Cancel(id))
	assert.True(t, h.Cancelled(id))

	assert.ErrorIs(t, h.Cancel("nope"), ErrUnknownJob)
}

func TestEventsArriveInPublishOrder(t *testing.T) {
	h := newTestHub()
	id := h.Create(4)

	l, err := h.Attach(id)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		h.Publish(id, JobProgress{Status: StatusProcessing, CurrentClip: i, TotalClips: 4})
	}
	h.Publish(id, JobProgress{Status: StatusDone, TotalClips: 4})

	got := drain(t, l)
	require.Len(t, got, 6)
	for i := 1; i <= 4; i++ {
		assert.Equal(t, i, got[i].CurrentClip)
	}
}

func TestRemoveExpired(t *testing.T) {
	h := newTestHub()
	id := h.Create(1)
	h.Publish(id, JobProgress{Status: StatusDone})

	h.mu.Lock()
	h.jobs[id].finishedAt = time.Now().Add(-time.Hour)
	h.mu.Unlock()

	h.removeExpired()
	_, err := h.Get(id)
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.False(t, StatusDownloading.Terminal())
	assert.False(t, StatusProcessing.Terminal())
}
