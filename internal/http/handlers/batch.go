package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/jobs"
)

// BatchSubmitter is the batch runner surface for admission.
type BatchSubmitter interface {
	Submit(req jobs.BatchRequest) (string, error)
}

// BatchHandler handles multi-URL batch submission.
type BatchHandler struct {
	runner BatchSubmitter
	logger *slog.Logger
}

// NewBatchHandler creates a batch handler.
func NewBatchHandler(runner BatchSubmitter, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		runner: runner,
		logger: logger.With("component", "api"),
	}
}

// BatchInput is the input for the batch endpoint.
type BatchInput struct {
	Body jobs.BatchRequest
}

// BatchBody is the response body for the batch endpoint.
type BatchBody struct {
	BatchID   string `json:"batchId" doc:"Identifier for progress streaming"`
	TotalURLs int    `json:"totalUrls"`
}

// BatchOutput is the output for the batch endpoint.
type BatchOutput struct {
	Body BatchBody
}

// Register registers the batch route with the API.
func (h *BatchHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "submitBatch",
		Method:      http.MethodPost,
		Path:        "/api/batch",
		Summary:     "Batch analyze and cut",
		Description: "Analyzes up to 20 URLs and cuts the detected highlights from each; progress streams at /api/batch/{id}/progress",
		Tags:        []string{"Jobs"},
	}, h.SubmitBatch)
}

// SubmitBatch validates and starts a batch run.
func (h *BatchHandler) SubmitBatch(ctx context.Context, input *BatchInput) (*BatchOutput, error) {
	for _, u := range input.Body.URLs {
		if err := validateVideoURL(u); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
	}

	batchID, err := h.runner.Submit(input.Body)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	h.logger.Info("batch submitted", "batch_id", batchID, "urls", len(input.Body.URLs))
	return &BatchOutput{Body: BatchBody{BatchID: batchID, TotalURLs: len(input.Body.URLs)}}, nil
}
