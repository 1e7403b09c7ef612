package executor

import "time"

// Status is the lifecycle state the executor reports for a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"

	// StatusTimeout is never reported by the executor. The poller synthesizes
	// it when the deadline passes without a terminal observation.
	StatusTimeout Status = "timeout"
)

// Terminal reports whether polling should stop on this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// Submission is the body of POST /tasks.
type Submission struct {
	Task             string `json:"task"`
	Model            string `json:"model"`
	WorkingDirectory string `json:"working_directory"`
}

// TaskHandle identifies a task accepted by the executor.
type TaskHandle struct {
	ID       string    `json:"task_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// TaskStatus is a snapshot returned by GET /tasks/{id}.
type TaskStatus struct {
	Status   Status `json:"status"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}
