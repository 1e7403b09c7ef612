package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"

	"github.com/antigravity-dev/taskrelay/internal/relay"
)

// Spawner starts a RelayWorkflow per job. Spawn only talks to the Temporal
// frontend; the executor is first contacted by the worker.
type Spawner struct {
	client    client.Client
	taskQueue string
	opts      relay.Options
	logger    *slog.Logger
}

// NewSpawner constructs a workflow-backed spawner.
func NewSpawner(c client.Client, taskQueue string, opts relay.Options, logger *slog.Logger) *Spawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spawner{client: c, taskQueue: taskQueue, opts: opts, logger: logger}
}

// WorkflowID is the Temporal workflow id used for a job.
func WorkflowID(jobID string) string {
	return "relay-" + jobID
}

// Request builds the workflow input for a job.
func (s *Spawner) Request(job relay.Job) RelayRequest {
	return RelayRequest{
		Job:          job,
		Submission:   s.opts.Submission(job),
		PollInterval: s.opts.PollInterval,
		PollTimeout:  s.opts.PollTimeout,
	}
}

// Spawn starts the workflow and returns as soon as Temporal accepted it.
func (s *Spawner) Spawn(ctx context.Context, job relay.Job) error {
	wo := client.StartWorkflowOptions{
		ID:        WorkflowID(job.ID),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, wo, RelayWorkflow, s.Request(job))
	if err != nil {
		return fmt.Errorf("start relay workflow: %w", err)
	}
	s.logger.Debug("relay workflow started", "job_id", job.ID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}

var _ relay.Spawner = (*Spawner)(nil)
