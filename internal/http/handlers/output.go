package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// OutputHandler serves finished clips from the output directory.
type OutputHandler struct {
	dir    string
	logger *slog.Logger
}

// NewOutputHandler creates an output file handler rooted at dir.
func NewOutputHandler(dir string, logger *slog.Logger) *OutputHandler {
	return &OutputHandler{
		dir:    dir,
		logger: logger.With("component", "output"),
	}
}

// RegisterRoutes registers the clip download route on the chi router.
func (h *OutputHandler) RegisterRoutes(router chi.Router) {
	router.Get("/output/{filename}", h.serveClip)
}

func (h *OutputHandler) serveClip(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	// Only flat .mp4 names produced by the job layer are servable.
	if filename == "" || filename != filepath.Base(filename) ||
		strings.Contains(filename, "..") || !strings.HasSuffix(filename, ".mp4") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.dir, filename)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}
