// Package relay runs the background half of a slash command: submit the task
// to the executor, wait for it to finish and post the result to the callback.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/antigravity-dev/taskrelay/internal/executor"
)

// Job is everything a detached relay unit needs. It is built once per
// accepted command and passed by value.
type Job struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	CallbackURL string    `json:"callback_url"`
	Requester   string    `json:"requester"`
	ReceivedAt  time.Time `json:"received_at"`
}

// TaskClient is the executor surface the relay uses.
type TaskClient interface {
	StatusFetcher
	Submit(ctx context.Context, sub executor.Submission) (executor.TaskHandle, error)
}

// Deliverer posts a message to a callback URL, best-effort.
type Deliverer interface {
	Deliver(ctx context.Context, callbackURL, message string, isError bool)
}

// Options carries the executor and polling settings applied to every job.
type Options struct {
	Model            string
	WorkingDirectory string
	PollInterval     time.Duration
	PollTimeout      time.Duration
}

// Relay drives one job from submission to delivery.
type Relay struct {
	tasks     TaskClient
	callbacks Deliverer
	poller    *Poller
	opts      Options
	logger    *slog.Logger
}

// New constructs a Relay.
func New(tasks TaskClient, callbacks Deliverer, opts Options, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Relay{
		tasks:     tasks,
		callbacks: callbacks,
		poller:    NewPoller(tasks, opts.PollInterval, logger),
		opts:      opts,
		logger:    logger,
	}
}

// Submission builds the executor payload for a job.
func (o Options) Submission(job Job) executor.Submission {
	return executor.Submission{
		Task:             job.Text,
		Model:            o.Model,
		WorkingDirectory: o.WorkingDirectory,
	}
}

// Process runs the job to completion. It never returns an error: every
// failure ends up as a callback message or a log line.
func (r *Relay) Process(ctx context.Context, job Job) {
	logger := r.logger.With("job_id", job.ID, "requester", job.Requester)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("relay panicked", "panic", rec)
			r.callbacks.Deliver(ctx, job.CallbackURL, FailureMessage(fmt.Errorf("unexpected error: %v", rec)), true)
		}
	}()

	handle, err := r.tasks.Submit(ctx, r.opts.Submission(job))
	if err != nil {
		logger.Error("task submission failed", "error", err)
		r.callbacks.Deliver(ctx, job.CallbackURL, FailureMessage(err), true)
		return
	}
	logger = logger.With("task_id", handle.ID)
	logger.Info("task submitted", "text", Preview(job.Text))

	result := r.poller.AwaitCompletion(ctx, handle.ID, r.opts.PollTimeout)
	logger.Info("task finished", "status", result.Status, "elapsed", time.Since(handle.IssuedAt).Round(time.Second).String())

	r.callbacks.Deliver(ctx, job.CallbackURL, FormatResult(result), IsErrorOutcome(result))
}

// FailureMessage is the callback text for a relay that could not finish.
func FailureMessage(err error) string {
	return fmt.Sprintf("Failed to process task: %v", err)
}

// IsErrorOutcome reports whether a terminal status is delivered as an error.
func IsErrorOutcome(st executor.TaskStatus) bool {
	return st.Status == executor.StatusFailed
}

// Preview shortens command text for log lines.
func Preview(text string) string {
	const limit = 100
	if cut, ok := truncateRunes(text, limit); ok {
		return cut + "..."
	}
	return text
}
