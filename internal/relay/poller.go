package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/antigravity-dev/taskrelay/internal/executor"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 600 * time.Second
)

// StatusFetcher reads one status snapshot for a task.
type StatusFetcher interface {
	GetStatus(ctx context.Context, taskID string) (*executor.TaskStatus, error)
}

// Poller waits for a task to reach a terminal state with a fixed interval.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller constructs a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(fetcher StatusFetcher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// AwaitCompletion polls until the task completes or fails, or timeout elapses.
// Status fetch errors are treated as "not known yet" and never end the loop.
// On deadline it returns a synthetic timeout status.
func (p *Poller) AwaitCompletion(ctx context.Context, taskID string, timeout time.Duration) executor.TaskStatus {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	start := p.now()
	attempt := 0
	for p.now().Sub(start) < timeout {
		attempt++
		st, err := p.fetcher.GetStatus(ctx, taskID)
		switch {
		case err != nil:
			p.logger.Debug("status fetch failed, will retry", "task_id", taskID, "attempt", attempt, "error", err)
		case st == nil:
		case st.Status == executor.StatusCompleted || st.Status == executor.StatusFailed:
			p.logger.Debug("task reached terminal state", "task_id", taskID, "status", st.Status, "attempts", attempt)
			return *st
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			p.logger.Warn("poll interrupted", "task_id", taskID, "error", err)
			break
		}
	}

	return TimeoutStatus(timeout)
}

// TimeoutStatus is the synthetic status reported when polling gives up.
func TimeoutStatus(timeout time.Duration) executor.TaskStatus {
	return executor.TaskStatus{
		Status: executor.StatusTimeout,
		Error:  fmt.Sprintf("Task timed out after %d seconds", int64(timeout/time.Second)),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
