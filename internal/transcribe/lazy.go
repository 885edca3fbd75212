package transcribe

import (
	"context"
	"sync"

	"github.com/clipforge/clipforge/internal/models"
)

// Handle memoizes a one-shot model load. A failed load poisons the handle:
// every subsequent Get returns the original error without retrying, which
// keeps a broken model from turning into a retry storm mid-job.
type Handle[T any] struct {
	once  sync.Once
	load  func() (T, error)
	value T
	err   error
}

// NewHandle wraps a load function without invoking it.
func NewHandle[T any](load func() (T, error)) *Handle[T] {
	return &Handle[T]{load: load}
}

// Get resolves the handle, loading on first use.
func (h *Handle[T]) Get() (T, error) {
	h.once.Do(func() {
		h.value, h.err = h.load()
		h.load = nil
	})
	return h.value, h.err
}

// Registry memoizes handles per model id within a request scope.
type Registry[T any] struct {
	mu      sync.Mutex
	handles map[string]*Handle[T]
}

// NewRegistry builds an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{handles: make(map[string]*Handle[T])}
}

// Resolve returns the value for id, loading it on first request. The load
// function runs at most once per id, even under concurrent callers.
func (r *Registry[T]) Resolve(id string, load func() (T, error)) (T, error) {
	r.mu.Lock()
	h, ok := r.handles[id]
	if !ok {
		h = NewHandle(load)
		r.handles[id] = h
	}
	r.mu.Unlock()
	return h.Get()
}

// lazyTranscriber resolves its model from the registry on first use, so the
// binary check and model load happen on the first captioned clip rather
// than at server startup.
type lazyTranscriber struct {
	registry *Registry[Transcriber]
	model    string
	load     func() (Transcriber, error)
}

// LazyTranscriber defers loading the named model until the first Transcribe
// call. Construction never fails; an unloadable model reports the same
// error on every call without retrying the load.
func LazyTranscriber(registry *Registry[Transcriber], model string, load func() (Transcriber, error)) Transcriber {
	return &lazyTranscriber{registry: registry, model: model, load: load}
}

func (l *lazyTranscriber) Transcribe(ctx context.Context, audioPath string) ([]models.SubtitleEntry, error) {
	t, err := l.registry.Resolve(l.model, l.load)
	if err != nil {
		return nil, err
	}
	return t.Transcribe(ctx, audioPath)
}
