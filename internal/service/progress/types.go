package progress

// Status is the coarse phase a job is in. Jobs move forward through the
// working statuses and end on exactly one terminal status.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusAnalyzing   Status = "analyzing"
	StatusProcessing  Status = "processing"
	StatusCaptioning  Status = "captioning"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// Terminal reports whether the status ends the job.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// JobProgress is a full snapshot of a job's state. Every published event
// carries the whole snapshot, so a listener that attaches late or drops an
// event is never left with a partial view.
type JobProgress struct {
	Status      Status   `json:"status"`
	CurrentClip int      `json:"currentClip"`
	TotalClips  int      `json:"totalClips"`
	Message     string   `json:"message,omitempty"`
	Files       []string `json:"files,omitempty"`
	Error       string   `json:"error,omitempty"`
}
