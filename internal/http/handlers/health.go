package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// ToolVersioner reports an external tool's version, failing when the
// binary is unavailable.
type ToolVersioner interface {
	Version(ctx context.Context) (string, error)
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version    string
	startTime  time.Time
	downloader ToolVersioner
	transcoder ToolVersioner
}

// NewHealthHandler creates a health handler probing the external tools.
func NewHealthHandler(version string, downloader, transcoder ToolVersioner) *HealthHandler {
	return &HealthHandler{
		version:    version,
		startTime:  time.Now(),
		downloader: downloader,
		transcoder: transcoder,
	}
}

// ToolStatus reports one external tool's availability.
type ToolStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string                `json:"status" doc:"healthy or degraded"`
	Timestamp     string                `json:"timestamp"`
	Version       string                `json:"version"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Tools         map[string]ToolStatus `json:"tools"`
}

// HealthInput is the input for the health endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health check",
		Description: "Returns service liveness and external tool availability",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth probes the external tools and reports overall status.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()

	tools := map[string]ToolStatus{
		"yt-dlp": h.probeTool(ctx, h.downloader),
		"ffmpeg": h.probeTool(ctx, h.transcoder),
	}

	status := "healthy"
	for _, t := range tools {
		if !t.Available {
			status = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			UptimeSeconds: now.Sub(h.startTime).Seconds(),
			Tools:         tools,
		},
	}, nil
}

func (h *HealthHandler) probeTool(ctx context.Context, tool ToolVersioner) ToolStatus {
	if tool == nil {
		return ToolStatus{Error: "not configured"}
	}
	version, err := tool.Version(ctx)
	if err != nil {
		return ToolStatus{Error: err.Error()}
	}
	return ToolStatus{Available: true, Version: version}
}
