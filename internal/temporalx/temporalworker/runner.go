package temporalworker

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/temporalx"
	"github.com/nestplan/nestplan-backend/internal/temporalx/renderjob"
	"github.com/nestplan/nestplan-backend/internal/utils"
)

// Runner hosts one Temporal worker polling the configured task queue for
// render and optimize jobs.
type Runner struct {
	log        *logger.Logger
	tc         temporalsdkclient.Client
	activities *renderjob.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, activities *renderjob.Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if activities == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{log: log, tc: tc, activities: activities}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}

	cfg := temporalx.LoadConfig()
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, r.log)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: concurrency,
	})

	w.RegisterWorkflowWithOptions(renderjob.RenderRoomWorkflow, workflow.RegisterOptions{Name: renderjob.RenderRoomWorkflowName})
	w.RegisterWorkflowWithOptions(renderjob.OptimizeImageWorkflow, workflow.RegisterOptions{Name: renderjob.OptimizeImageWorkflowName})

	registerActivities(w, r.activities)

	if err := w.Start(); err != nil {
		return fmt.Errorf("temporal worker start: %w", err)
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			w.Stop()
		}()
	}
	r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	return nil
}

func registerActivities(w worker.Worker, a *renderjob.Activities) {
	type named struct {
		name string
		fn   any
	}
	for _, act := range []named{
		{renderjob.ActivityMarkJobRunning, a.MarkJobRunning},
		{renderjob.ActivityMarkJobFailed, a.MarkJobFailed},
		{renderjob.ActivityRenderRoom, a.RenderRoom},
		{renderjob.ActivityCompleteRender, a.CompleteRender},
		{renderjob.ActivityOptimizeImage, a.OptimizeImage},
		{renderjob.ActivityCompleteOptimize, a.CompleteOptimize},
	} {
		w.RegisterActivityWithOptions(act.fn, activity.RegisterOptions{Name: act.name})
	}
}
