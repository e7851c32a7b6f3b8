package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/requestdata"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type fakeJobService struct {
	job     *types.JobRun
	err     error
	roomIDs []uuid.UUID
	prompts []string
}

func (f *fakeJobService) EnqueueRenderRoom(ctx context.Context, userID, roomID uuid.UUID, prompt string) (*types.JobRun, error) {
	f.roomIDs = append(f.roomIDs, roomID)
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func (f *fakeJobService) EnqueueOptimizeImage(ctx context.Context, userID, assetID uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobService) GetByID(ctx context.Context, userID, jobID uuid.UUID) (*types.JobRun, error) {
	return f.job, nil
}

func (f *fakeJobService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.JobRun, error) {
	return nil, nil
}

func toolCtx(userID, threadID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID:   userID,
		ThreadID: threadID,
	})
}

func TestRequestRenderForwardsPrompt(t *testing.T) {
	userID := uuid.New()
	threadID := uuid.New()
	roomID := uuid.New()

	threads := newFakeThreadRepo()
	threads.threads[threadID] = &types.ChatThread{ID: threadID, UserID: userID, RoomID: &roomID}
	jobs := &fakeJobService{job: &types.JobRun{ID: uuid.New()}}

	tool := requestRenderTool(AgentToolDeps{
		Threads: threads,
		Jobs:    jobs,
		Log:     testLogger(t),
	})

	out, err := tool.Execute(toolCtx(userID, threadID), map[string]any{
		"prompt": "warm evening light, view from the door",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result, ok := out.(map[string]any)
	if !ok || result["queued"] != true {
		t.Fatalf("result = %+v", out)
	}
	if len(jobs.roomIDs) != 1 || jobs.roomIDs[0] != roomID {
		t.Fatalf("enqueued room ids = %v, want [%s]", jobs.roomIDs, roomID)
	}
	if len(jobs.prompts) != 1 || jobs.prompts[0] != "warm evening light, view from the door" {
		t.Fatalf("enqueued prompts = %v", jobs.prompts)
	}
}

func TestRequestRenderPromptIsOptional(t *testing.T) {
	userID := uuid.New()
	threadID := uuid.New()
	roomID := uuid.New()

	threads := newFakeThreadRepo()
	threads.threads[threadID] = &types.ChatThread{ID: threadID, UserID: userID, RoomID: &roomID}
	jobs := &fakeJobService{job: &types.JobRun{ID: uuid.New()}}

	tool := requestRenderTool(AgentToolDeps{Threads: threads, Jobs: jobs, Log: testLogger(t)})
	if _, err := tool.Execute(toolCtx(userID, threadID), map[string]any{}); err != nil {
		t.Fatalf("execute without prompt: %v", err)
	}
	if len(jobs.prompts) != 1 || jobs.prompts[0] != "" {
		t.Fatalf("enqueued prompts = %v, want one empty prompt", jobs.prompts)
	}
}

func TestRequestRenderRequiresSavedPlan(t *testing.T) {
	userID := uuid.New()
	threadID := uuid.New()

	threads := newFakeThreadRepo()
	threads.threads[threadID] = &types.ChatThread{ID: threadID, UserID: userID}
	jobs := &fakeJobService{}

	tool := requestRenderTool(AgentToolDeps{Threads: threads, Jobs: jobs, Log: testLogger(t)})
	_, err := tool.Execute(toolCtx(userID, threadID), map[string]any{})
	if err == nil {
		t.Fatalf("expected error for thread without a room")
	}
	if !strings.Contains(err.Error(), "save a plan first") {
		t.Fatalf("error = %v", err)
	}
	if len(jobs.roomIDs) != 0 {
		t.Fatalf("job enqueued without a room: %v", jobs.roomIDs)
	}
}
