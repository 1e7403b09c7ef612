package temporal

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/antigravity-dev/taskrelay/internal/executor"
	"github.com/antigravity-dev/taskrelay/internal/relay"
)

// RelayWorkflow is the durable form of relay.Relay.Process:
//
//  1. SUBMIT   SubmitActivity, once. A rejection is delivered and ends the run
//  2. POLL     StatusActivity every PollInterval until completed/failed or PollTimeout
//  3. FORMAT   relay.FormatResult, inline
//  4. DELIVER  DeliverActivity, best-effort
//
// The workflow itself never fails on executor or callback errors.
func RelayWorkflow(ctx workflow.Context, req RelayRequest) error {
	logger := workflow.GetLogger(ctx)

	submitOpts := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1}, // submission is never retried
	}
	statusOpts := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1}, // the poll loop is the retry
	}
	deliverOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}

	var a *Activities

	deliver := func(text string, isError bool) {
		dctx := workflow.WithActivityOptions(ctx, deliverOpts)
		dreq := DeliveryRequest{JobID: req.Job.ID, CallbackURL: req.Job.CallbackURL, Text: text, IsError: isError}
		if err := workflow.ExecuteActivity(dctx, a.DeliverActivity, dreq).Get(ctx, nil); err != nil {
			logger.Warn("deliver activity failed", "JobID", req.Job.ID, "error", err)
		}
	}

	// ===== SUBMIT =====
	var submitted SubmitResult
	if err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, submitOpts), a.SubmitActivity, req.Submission).Get(ctx, &submitted); err != nil {
		deliver(relay.FailureMessage(err), true)
		return nil
	}
	if submitted.Error != "" {
		deliver(relay.FailureMessage(errors.New(submitted.Error)), true)
		return nil
	}
	logger.Info("Task submitted", "JobID", req.Job.ID, "TaskID", submitted.TaskID)

	// ===== POLL =====
	interval := req.PollInterval
	if interval <= 0 {
		interval = relay.DefaultPollInterval
	}
	timeout := req.PollTimeout
	if timeout <= 0 {
		timeout = relay.DefaultPollTimeout
	}

	result := relay.TimeoutStatus(timeout)
	statusCtx := workflow.WithActivityOptions(ctx, statusOpts)
	start := workflow.Now(ctx)
	attempt := 0

poll:
	for workflow.Now(ctx).Sub(start) < timeout {
		attempt++
		var st executor.TaskStatus
		err := workflow.ExecuteActivity(statusCtx, a.StatusActivity, submitted.TaskID).Get(ctx, &st)
		switch {
		case err != nil:
			logger.Debug("Status fetch failed, will retry", "TaskID", submitted.TaskID, "Attempt", attempt, "error", err)
		case st.Status == executor.StatusCompleted || st.Status == executor.StatusFailed:
			result = st
			break poll
		}

		if err := workflow.Sleep(ctx, interval); err != nil {
			logger.Warn("Poll interrupted", "TaskID", submitted.TaskID, "error", err)
			break
		}
	}

	logger.Info("Task finished", "TaskID", submitted.TaskID, "Status", result.Status, "Attempts", attempt)

	// ===== FORMAT + DELIVER =====
	deliver(relay.FormatResult(result), relay.IsErrorOutcome(result))
	return nil
}
