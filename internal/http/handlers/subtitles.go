package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/captions"
	"github.com/clipforge/clipforge/internal/models"
)

// SubtitleSource fetches full-video subtitles for a URL.
type SubtitleSource interface {
	Subtitles(ctx context.Context, url, lang string) ([]models.SubtitleEntry, error)
}

// SubtitlesHandler handles pre-cut subtitle preview requests.
type SubtitlesHandler struct {
	source  SubtitleSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewSubtitlesHandler creates a subtitles handler.
func NewSubtitlesHandler(source SubtitleSource, timeout time.Duration, logger *slog.Logger) *SubtitlesHandler {
	return &SubtitlesHandler{
		source:  source,
		timeout: timeout,
		logger:  logger.With("component", "api"),
	}
}

// SubtitlesRequestBody is the subtitles request payload.
type SubtitlesRequestBody struct {
	URL      string           `json:"url" doc:"Video URL"`
	Segments []models.Segment `json:"segments" doc:"Segments to slice subtitles for"`
}

// SubtitlesInput is the input for the subtitles endpoint.
type SubtitlesInput struct {
	Body SubtitlesRequestBody
}

// SubtitlesBody is the response body for the subtitles endpoint.
type SubtitlesBody struct {
	Subtitles map[string][]models.SubtitleEntry `json:"subtitles" doc:"Clip-relative subtitle entries keyed by segment id"`
}

// SubtitlesOutput is the output for the subtitles endpoint.
type SubtitlesOutput struct {
	Body SubtitlesBody
}

// Register registers the subtitles route with the API.
func (h *SubtitlesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSubtitles",
		Method:      http.MethodPost,
		Path:        "/api/subtitles",
		Summary:     "Fetch subtitles per segment",
		Description: "Downloads the video's subtitles and slices them to each requested segment, rebased to clip time",
		Tags:        []string{"Analysis"},
	}, h.GetSubtitles)
}

// GetSubtitles fetches and slices subtitles for each segment.
func (h *SubtitlesHandler) GetSubtitles(ctx context.Context, input *SubtitlesInput) (*SubtitlesOutput, error) {
	if err := validateVideoURL(input.Body.URL); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if len(input.Body.Segments) == 0 {
		return nil, huma.Error400BadRequest(models.ErrNoSegments.Error())
	}

	fctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	full, err := h.source.Subtitles(fctx, input.Body.URL, "")
	if err != nil {
		h.logger.Warn("subtitle fetch failed", "url", input.Body.URL, "error", err)
		full = nil
	}

	out := SubtitlesBody{Subtitles: make(map[string][]models.SubtitleEntry, len(input.Body.Segments))}
	for _, seg := range input.Body.Segments {
		out.Subtitles[seg.ID] = captions.Slice(full, seg.StartS, seg.EndS)
	}
	return &SubtitlesOutput{Body: out}, nil
}
