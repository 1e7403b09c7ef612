package temporal

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// NewWorker builds the relay task queue worker. The caller starts and stops it.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(RelayWorkflow)

	w.RegisterActivity(acts.SubmitActivity)
	w.RegisterActivity(acts.StatusActivity)
	w.RegisterActivity(acts.DeliverActivity)

	return w
}
