// Package handlers provides the HTTP API handlers for clipforge.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/analysis"
	"github.com/clipforge/clipforge/internal/models"
)

// AnalyzeService runs the highlight discovery pipeline for one URL.
type AnalyzeService interface {
	Analyze(ctx context.Context, url string, opts analysis.DetectOptions) (*analysis.Result, error)
}

// AnalyzeHandler handles the analyze endpoint.
type AnalyzeHandler struct {
	service  AnalyzeService
	defaults analysis.DetectOptions
	logger   *slog.Logger
}

// NewAnalyzeHandler creates an analyze handler with configured detection
// defaults.
func NewAnalyzeHandler(service AnalyzeService, defaults analysis.DetectOptions, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:  service,
		defaults: defaults,
		logger:   logger.With("component", "api"),
	}
}

// AnalyzeRequestBody is the analyze request payload.
type AnalyzeRequestBody struct {
	URL      string                  `json:"url" doc:"Video URL to analyze"`
	Settings *analysis.DetectOptions `json:"settings,omitempty" required:"false" doc:"Detection overrides; unset fields use server defaults"`
}

// AnalyzeInput is the input for the analyze endpoint.
type AnalyzeInput struct {
	Body AnalyzeRequestBody
}

// AnalyzeOutput is the output for the analyze endpoint.
type AnalyzeOutput struct {
	Body analysis.Result
}

// Register registers the analyze route with the API.
func (h *AnalyzeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "analyzeVideo",
		Method:      http.MethodPost,
		Path:        "/api/analyze",
		Summary:     "Analyze a video",
		Description: "Detects highlight segments for a video URL and scores their virality",
		Tags:        []string{"Analysis"},
	}, h.Analyze)
}

// Analyze runs detection for the requested URL.
func (h *AnalyzeHandler) Analyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	if err := validateVideoURL(input.Body.URL); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	opts := h.defaults
	if input.Body.Settings != nil {
		opts = input.Body.Settings.Merge(h.defaults)
	}

	result, err := h.service.Analyze(ctx, input.Body.URL, opts)
	if err != nil {
		h.logger.Error("analyze failed", "url", input.Body.URL, "error", err)
		return nil, huma.Error502BadGateway("analysis failed: " + err.Error())
	}

	return &AnalyzeOutput{Body: *result}, nil
}

// validateVideoURL checks the URL is absolute http(s).
func validateVideoURL(raw string) error {
	if raw == "" {
		return models.ErrURLRequired
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ErrInvalidURL
	}
	return nil
}
