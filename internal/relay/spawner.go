package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Spawner starts the detached unit of work for a job. Spawn must return
// without waiting for the job to make any executor call.
type Spawner interface {
	Spawn(ctx context.Context, job Job) error
}

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, job Job)
}

// GoroutineSpawner runs each job on its own goroutine. There is no cap on
// in-flight jobs.
type GoroutineSpawner struct {
	processor Processor
	logger    *slog.Logger

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewGoroutineSpawner constructs a spawner backed by processor.
func NewGoroutineSpawner(processor Processor, logger *slog.Logger) *GoroutineSpawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoroutineSpawner{processor: processor, logger: logger}
}

// Spawn launches the job on a background context; the job outlives the
// request that created it.
func (s *GoroutineSpawner) Spawn(_ context.Context, job Job) error {
	s.wg.Add(1)
	s.inFlight.Add(1)
	go s.run(job)
	return nil
}

func (s *GoroutineSpawner) run(job Job) {
	defer s.wg.Done()
	defer s.inFlight.Add(-1)

	s.logger.Debug("relay started", "job_id", job.ID)
	s.processor.Process(context.Background(), job)
	s.logger.Debug("relay finished", "job_id", job.ID)
}

// InFlight returns the number of jobs still running.
func (s *GoroutineSpawner) InFlight() int64 {
	return s.inFlight.Load()
}

// Wait blocks until every spawned job has finished or ctx is done.
// It returns ctx.Err() when jobs were still running.
func (s *GoroutineSpawner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Spawner = (*GoroutineSpawner)(nil)
