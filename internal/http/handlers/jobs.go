package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/service/progress"
)

// JobSubmitter is the orchestrator surface for job admission and control.
type JobSubmitter interface {
	Submit(req models.CutRequest) (string, error)
	Cancel(jobID string) error
}

// JobsHandler handles cut submission and job inspection.
type JobsHandler struct {
	orch   JobSubmitter
	hub    *progress.Hub
	logger *slog.Logger
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(orch JobSubmitter, hub *progress.Hub, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		orch:   orch,
		hub:    hub,
		logger: logger.With("component", "api"),
	}
}

// CutInput is the input for the cut endpoint.
type CutInput struct {
	Body models.CutRequest
}

// CutBody is the response body for the cut endpoint.
type CutBody struct {
	JobID string `json:"jobId" doc:"Identifier for progress streaming and lookup"`
}

// CutOutput is the output for the cut endpoint.
type CutOutput struct {
	Body CutBody
}

// GetJobInput is the input for the job lookup endpoint.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// GetJobBody is the response body for the job lookup endpoint.
type GetJobBody struct {
	ID       string               `json:"id"`
	Progress progress.JobProgress `json:"progress"`
}

// GetJobOutput is the output for the job lookup endpoint.
type GetJobOutput struct {
	Body GetJobBody
}

// CancelJobInput is the input for the job cancel endpoint.
type CancelJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// CancelJobBody is the response body for the job cancel endpoint.
type CancelJobBody struct {
	Cancelled bool `json:"cancelled"`
}

// CancelJobOutput is the output for the job cancel endpoint.
type CancelJobOutput struct {
	Body CancelJobBody
}

// Register registers the job routes with the API.
func (h *JobsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "cutClips",
		Method:      http.MethodPost,
		Path:        "/api/cut",
		Summary:     "Cut clips",
		Description: "Submits a job cutting the given segments out of a video; returns immediately with a job id",
		Tags:        []string{"Jobs"},
	}, h.Cut)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      http.MethodGet,
		Path:        "/api/jobs/{id}",
		Summary:     "Get job state",
		Tags:        []string{"Jobs"},
	}, h.GetJob)

	huma.Register(api, huma.Operation{
		OperationID: "cancelJob",
		Method:      http.MethodDelete,
		Path:        "/api/jobs/{id}",
		Summary:     "Cancel a job",
		Description: "Flags a running job for cancellation; the job transitions to error with message \"cancelled\"",
		Tags:        []string{"Jobs"},
	}, h.CancelJob)
}

// Cut validates and submits a cut job.
func (h *JobsHandler) Cut(ctx context.Context, input *CutInput) (*CutOutput, error) {
	if err := validateVideoURL(input.Body.URL); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	jobID, err := h.orch.Submit(input.Body)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	h.logger.Info("cut job submitted", "job_id", jobID, "clips", len(input.Body.Segments))
	return &CutOutput{Body: CutBody{JobID: jobID}}, nil
}

// GetJob returns the latest progress snapshot for a job.
func (h *JobsHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	p, err := h.hub.Get(input.ID)
	if err != nil {
		if errors.Is(err, progress.ErrUnknownJob) {
			return nil, huma.Error404NotFound(models.ErrJobNotFound.Error())
		}
		return nil, err
	}
	return &GetJobOutput{Body: GetJobBody{ID: input.ID, Progress: p}}, nil
}

// CancelJob flags a job for cancellation.
func (h *JobsHandler) CancelJob(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	if err := h.orch.Cancel(input.ID); err != nil {
		if errors.Is(err, progress.ErrUnknownJob) {
			return nil, huma.Error404NotFound(models.ErrJobNotFound.Error())
		}
		return nil, err
	}
	return &CancelJobOutput{Body: CancelJobBody{Cancelled: true}}, nil
}
