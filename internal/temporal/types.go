package temporal

import (
	"time"

	"github.com/antigravity-dev/taskrelay/internal/executor"
	"github.com/antigravity-dev/taskrelay/internal/relay"
)

// RelayRequest starts one RelayWorkflow. It carries everything the workflow
// needs so the worker never reads config mid-run.
type RelayRequest struct {
	Job          relay.Job           `json:"job"`
	Submission   executor.Submission `json:"submission"`
	PollInterval time.Duration       `json:"poll_interval"`
	PollTimeout  time.Duration       `json:"poll_timeout"`
}

// SubmitResult is the outcome of SubmitActivity. Executor rejections are
// reported in Error rather than as an activity failure so the workflow can
// quote the executor's reason verbatim.
type SubmitResult struct {
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DeliveryRequest is the input to DeliverActivity.
type DeliveryRequest struct {
	JobID       string `json:"job_id"`
	CallbackURL string `json:"callback_url"`
	Text        string `json:"text"`
	IsError     bool   `json:"is_error"`
}
