package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/sse"
	"github.com/nestplan/nestplan-backend/internal/types"
)

// Workflow names kept literal to avoid an import cycle with the renderjob
// package, which depends on services for its activity deps.
const (
	workflowNameRenderRoom    = "RenderRoomWorkflow"
	workflowNameOptimizeImage = "OptimizeImageWorkflow"
)

type JobService interface {
	// EnqueueRenderRoom records a job row and dispatches the render workflow.
	// The optional prompt refines the generated image beyond the saved plan.
	EnqueueRenderRoom(ctx context.Context, userID, roomID uuid.UUID, prompt string) (*types.JobRun, error)
	EnqueueOptimizeImage(ctx context.Context, userID, assetID uuid.UUID) (*types.JobRun, error)
	GetByID(ctx context.Context, userID, jobID uuid.UUID) (*types.JobRun, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.JobRun, error)
}

type jobService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.JobRunRepo
	emit SSEEmitter

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	emit SSEEmitter,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               baseLog.With("service", "JobService"),
		repo:              repo,
		emit:              emit,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) EnqueueRenderRoom(ctx context.Context, userID, roomID uuid.UUID, prompt string) (*types.JobRun, error) {
	if roomID == uuid.Nil {
		return nil, fmt.Errorf("missing room id")
	}
	prompt = strings.TrimSpace(prompt)
	entityID := roomID
	job, err := s.enqueue(ctx, userID, types.JobTypeRenderRoom, "room", &entityID, map[string]any{
		"room_id": roomID.String(),
		"prompt":  prompt,
	})
	if err != nil {
		return nil, err
	}
	input := map[string]string{
		"job_id":  job.ID.String(),
		"user_id": userID.String(),
		"room_id": roomID.String(),
		"prompt":  prompt,
	}
	if err := s.dispatch(ctx, job, workflowNameRenderRoom, input); err != nil {
		return job, err
	}
	return job, nil
}

func (s *jobService) EnqueueOptimizeImage(ctx context.Context, userID, assetID uuid.UUID) (*types.JobRun, error) {
	if assetID == uuid.Nil {
		return nil, fmt.Errorf("missing asset id")
	}
	entityID := assetID
	job, err := s.enqueue(ctx, userID, types.JobTypeOptimizeImage, "asset", &entityID, map[string]any{
		"asset_id": assetID.String(),
	})
	if err != nil {
		return nil, err
	}
	input := map[string]string{
		"job_id":   job.ID.String(),
		"user_id":  userID.String(),
		"asset_id": assetID.String(),
	}
	if err := s.dispatch(ctx, job, workflowNameOptimizeImage, input); err != nil {
		return job, err
	}
	return job, nil
}

func (s *jobService) enqueue(ctx context.Context, userID uuid.UUID, jobType, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	if s.temporal == nil {
		return nil, fmt.Errorf("temporal not configured (TEMPORAL_ADDRESS)")
	}
	payloadJSON := datatypes.JSON([]byte(`{}`))
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			payloadJSON = datatypes.JSON(b)
		}
	}
	now := time.Now()
	job := &types.JobRun{
		ID:         uuid.New(),
		UserID:     userID,
		JobType:    jobType,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     types.JobStatusQueued,
		Payload:    payloadJSON,
		Result:     datatypes.JSON([]byte(`{}`)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(ctx, nil, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.notifyJob(ctx, job)
	return job, nil
}

// dispatch starts the workflow with the job id as workflow id, so a duplicate
// dispatch for the same job is rejected rather than run twice.
func (s *jobService) dispatch(ctx context.Context, job *types.JobRun, workflowName string, input any) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    job.ID.String(),
		TaskQueue:             s.temporalTaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	run, err := s.temporal.ExecuteWorkflow(ctx, opts, workflowName, input)
	if err != nil {
		if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
			return nil
		}
		raw, _ := json.Marshal(map[string]string{"error": err.Error()})
		if uErr := s.repo.MarkError(ctx, nil, job.ID, raw); uErr != nil {
			s.log.Error("Failed to mark job dispatch error", "job_id", job.ID, "error", uErr)
		}
		return fmt.Errorf("start temporal workflow: %w", err)
	}
	if uErr := s.repo.UpdateFields(ctx, nil, job.ID, map[string]interface{}{"workflow_id": run.GetID()}); uErr != nil {
		s.log.Error("Failed to record workflow id", "job_id", job.ID, "error", uErr)
	}
	return nil
}

func (s *jobService) notifyJob(ctx context.Context, job *types.JobRun) {
	if s.emit == nil {
		return
	}
	s.emit.Emit(ctx, sse.SSEMessage{
		Channel: job.UserID.String(),
		Event:   sse.SSEEventJobUpdated,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"status":   job.Status,
		},
	})
}

func (s *jobService) GetByID(ctx context.Context, userID, jobID uuid.UUID) (*types.JobRun, error) {
	job, err := s.repo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return job, nil
}

func (s *jobService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.JobRun, error) {
	return s.repo.ListByUser(ctx, nil, userID, 50)
}
