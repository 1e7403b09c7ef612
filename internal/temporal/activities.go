package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/antigravity-dev/taskrelay/internal/callback"
	"github.com/antigravity-dev/taskrelay/internal/executor"
	"github.com/antigravity-dev/taskrelay/internal/relay"
)

// Sender performs a single callback POST.
type Sender interface {
	Send(ctx context.Context, callbackURL string, msg callback.Message) error
}

// Activities holds dependencies for Temporal activity methods.
type Activities struct {
	Tasks     relay.TaskClient
	Callbacks Sender
}

// SubmitActivity hands the task to the executor exactly once.
func (a *Activities) SubmitActivity(ctx context.Context, sub executor.Submission) (*SubmitResult, error) {
	logger := activity.GetLogger(ctx)

	handle, err := a.Tasks.Submit(ctx, sub)
	if err != nil {
		logger.Error("task submission failed", "error", err)
		return &SubmitResult{Error: err.Error()}, nil
	}
	logger.Info("task submitted", "task_id", handle.ID, "text", relay.Preview(sub.Task))
	return &SubmitResult{TaskID: handle.ID}, nil
}

// StatusActivity reads one status snapshot. Errors are returned to the
// workflow, which treats them as "not known yet".
func (a *Activities) StatusActivity(ctx context.Context, taskID string) (*executor.TaskStatus, error) {
	st, err := a.Tasks.GetStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("empty status for task %s", taskID)
	}
	return st, nil
}

// DeliverActivity posts the final message. Delivery failures are logged and
// swallowed; there is nobody left to report them to.
func (a *Activities) DeliverActivity(ctx context.Context, req DeliveryRequest) error {
	logger := activity.GetLogger(ctx)

	if err := a.Callbacks.Send(ctx, req.CallbackURL, callback.NewMessage(req.Text, req.IsError)); err != nil {
		logger.Warn("callback delivery failed", "job_id", req.JobID, "error", err)
		return nil
	}
	logger.Info("callback delivered", "job_id", req.JobID, "is_error", req.IsError)
	return nil
}
