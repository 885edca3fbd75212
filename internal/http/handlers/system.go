package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// JobCounter reports how many job workers are currently running.
type JobCounter interface {
	ActiveJobs() int
}

// SystemHandler handles the system metrics endpoint.
type SystemHandler struct {
	jobs JobCounter
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(jobs JobCounter) *SystemHandler {
	return &SystemHandler{jobs: jobs}
}

// CPUInfo reports host load.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo reports host and process memory in megabytes.
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb"`
	UsedMB      float64 `json:"used_mb"`
	AvailableMB float64 `json:"available_mb"`
	ProcessMB   float64 `json:"process_mb"`
}

// SystemResponse is the system metrics payload.
type SystemResponse struct {
	CPU        CPUInfo    `json:"cpu"`
	Memory     MemoryInfo `json:"memory"`
	ActiveJobs int        `json:"active_jobs"`
}

// SystemInput is the input for the system endpoint.
type SystemInput struct{}

// SystemOutput is the output for the system endpoint.
type SystemOutput struct {
	Body SystemResponse
}

// Register registers the system route with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystem",
		Method:      http.MethodGet,
		Path:        "/api/system",
		Summary:     "System metrics",
		Description: "Returns host load, memory usage, and the active job count",
		Tags:        []string{"System"},
	}, h.GetSystem)
}

// GetSystem collects host metrics. Collection failures leave fields at
// zero rather than failing the request.
func (h *SystemHandler) GetSystem(ctx context.Context, input *SystemInput) (*SystemOutput, error) {
	resp := SystemResponse{
		CPU: CPUInfo{Cores: runtime.NumCPU()},
	}
	if h.jobs != nil {
		resp.ActiveJobs = h.jobs.ActiveJobs()
	}

	if loadAvg, err := load.AvgWithContext(ctx); err == nil && loadAvg != nil {
		resp.CPU.Load1Min = loadAvg.Load1
		resp.CPU.Load5Min = loadAvg.Load5
		resp.CPU.Load15Min = loadAvg.Load15
		if resp.CPU.Cores > 0 {
			resp.CPU.LoadPercentage1Min = loadAvg.Load1 / float64(resp.CPU.Cores) * 100
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		resp.Memory.TotalMB = float64(vm.Total) / 1024 / 1024
		resp.Memory.UsedMB = float64(vm.Used) / 1024 / 1024
		resp.Memory.AvailableMB = float64(vm.Available) / 1024 / 1024
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if pm, err := proc.MemoryInfoWithContext(ctx); err == nil && pm != nil {
			resp.Memory.ProcessMB = float64(pm.RSS) / 1024 / 1024
		}
	}

	return &SystemOutput{Body: resp}, nil
}
