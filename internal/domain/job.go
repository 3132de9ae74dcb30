package domain

// JobStatus represents the public lifecycle state of an analysis job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
// Terminal jobs are never resurrected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the status record for one analysis job. It is created at enqueue
// time and mutated only by the single worker executing it.
type Job struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
}

// JobRequest is the payload carried on the queue
type JobRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	View     string `json:"view,omitempty"`
	Context  string `json:"context,omitempty"`
}
