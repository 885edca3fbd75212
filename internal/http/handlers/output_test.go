package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/http/handlers"
)

func setupOutputRouter(t *testing.T) (*chi.Mux, string) {
	t.Helper()
	dir := t.TempDir()
	router := chi.NewRouter()
	handlers.NewOutputHandler(dir, testLogger()).RegisterRoutes(router)
	return router, dir
}

func TestServeClip_Success(t *testing.T) {
	router, dir := setupOutputRouter(t)
	content := []byte("not really mp4 bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "My_Video_clip1_1m40s.mp4"), content, 0o644))

	req := httptest.NewRequest(http.MethodGet, "/output/My_Video_clip1_1m40s.mp4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestServeClip_Missing(t *testing.T) {
	router, _ := setupOutputRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/output/nope_clip1_0m00s.mp4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeClip_RejectsNonClipNames(t *testing.T) {
	router, dir := setupOutputRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	for _, target := range []string{
		"/output/notes.txt",
		"/output/%2e%2e%2fsecret.mp4",
		"/output/..clip.mp4",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, "target %q", target)
	}
}
