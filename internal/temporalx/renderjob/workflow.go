package renderjob

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	TaskQueueEnvDefault = "nestplan"

	RenderRoomWorkflowName    = "RenderRoomWorkflow"
	OptimizeImageWorkflowName = "OptimizeImageWorkflow"
)

// RenderRoomInput is the workflow argument; the workflow id doubles as the
// job_run id so dispatch is idempotent.
type RenderRoomInput struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
	Prompt string `json:"prompt,omitempty"`
}

type OptimizeImageInput struct {
	JobID   string `json:"job_id"`
	UserID  string `json:"user_id"`
	AssetID string `json:"asset_id"`
}

// RenderRoomWorkflow produces a photorealistic render for a planned room:
// mark the job running, generate and store the image, record the result.
// Activity failures flow back into the job row via the failure handler.
func RenderRoomWorkflow(ctx workflow.Context, in RenderRoomInput) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumInterval: 30 * time.Second,
			MaximumAttempts: 3,
		},
	})

	if err := workflow.ExecuteActivity(ctx, ActivityMarkJobRunning, in.JobID).Get(ctx, nil); err != nil {
		return err
	}

	var out RenderResult
	if err := workflow.ExecuteActivity(ctx, ActivityRenderRoom, in).Get(ctx, &out); err != nil {
		_ = workflow.ExecuteActivity(ctx, ActivityMarkJobFailed, in.JobID, err.Error()).Get(ctx, nil)
		return err
	}

	return workflow.ExecuteActivity(ctx, ActivityCompleteRender, in, out).Get(ctx, nil)
}

// OptimizeImageWorkflow recompresses an uploaded asset in place.
func OptimizeImageWorkflow(ctx workflow.Context, in OptimizeImageInput) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumInterval: 30 * time.Second,
			MaximumAttempts: 3,
		},
	})

	if err := workflow.ExecuteActivity(ctx, ActivityMarkJobRunning, in.JobID).Get(ctx, nil); err != nil {
		return err
	}

	var out OptimizeResult
	if err := workflow.ExecuteActivity(ctx, ActivityOptimizeImage, in).Get(ctx, &out); err != nil {
		_ = workflow.ExecuteActivity(ctx, ActivityMarkJobFailed, in.JobID, err.Error()).Get(ctx, nil)
		return err
	}

	return workflow.ExecuteActivity(ctx, ActivityCompleteOptimize, in, out).Get(ctx, nil)
}
