package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/agent"
	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/requestdata"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type SendMessageInput struct {
	UserID        uuid.UUID
	ThreadID      *uuid.UUID
	Text          string
	AttachmentIDs []string
}

type ChatService interface {
	// SendMessage runs one engine loop for the message. Events stream to the
	// user's SSE channel while the call is in flight; the returned thread is
	// the one the turn landed on (created on first message).
	SendMessage(ctx context.Context, in SendMessageInput) (*types.ChatThread, error)
	CreateThread(ctx context.Context, userID uuid.UUID, title string, roomID *uuid.UUID) (*types.ChatThread, error)
	GetThread(ctx context.Context, userID, threadID uuid.UUID) (*types.ChatThread, error)
	ListThreads(ctx context.Context, userID uuid.UUID) ([]*types.ChatThread, error)
	ListTurns(ctx context.Context, userID, threadID uuid.UUID) ([]*types.ChatTurn, error)
}

type chatService struct {
	engine   *agent.Engine
	threads  repos.ChatThreadRepo
	turns    repos.ChatTurnRepo
	notifier ChatNotifier
	log      *logger.Logger

	// One writer per thread: concurrent sends on the same thread serialize
	// here, sends on different threads proceed in parallel.
	mu          sync.Mutex
	threadLocks map[uuid.UUID]*sync.Mutex
}

func NewChatService(
	engine *agent.Engine,
	threads repos.ChatThreadRepo,
	turns repos.ChatTurnRepo,
	notifier ChatNotifier,
	log *logger.Logger,
) ChatService {
	return &chatService{
		engine:      engine,
		threads:     threads,
		turns:       turns,
		notifier:    notifier,
		log:         log.With("service", "ChatService"),
		threadLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *chatService) lockThread(threadID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.threadLocks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		s.threadLocks[threadID] = lock
	}
	return lock
}

func (s *chatService) SendMessage(ctx context.Context, in SendMessageInput) (*types.ChatThread, error) {
	if in.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("message text required")
	}

	thread, err := s.resolveThread(ctx, in)
	if err != nil {
		return nil, err
	}

	lock := s.lockThread(thread.ID)
	lock.Lock()
	defer lock.Unlock()

	// Tools resolve the calling user and thread from request data.
	ctx = requestdata.WithRequestData(ctx, &requestdata.RequestData{
		UserID:   in.UserID,
		ThreadID: thread.ID,
	})

	result, runErr := s.engine.Run(ctx, agent.RunInput{
		ThreadID:      thread.ID,
		UserID:        in.UserID,
		Text:          in.Text,
		AttachmentIDs: in.AttachmentIDs,
	}, EngineCallbacks(s.notifier, in.UserID, thread.ID))

	// Bookkeeping failures after a completed run are logged, not surfaced.
	updates := map[string]interface{}{"step_count": result.Steps}
	if thread.Title == "" {
		updates["title"] = titleFromText(in.Text)
	}
	if uErr := s.threads.UpdateFields(ctx, nil, thread.ID, updates); uErr != nil {
		s.log.Error("Failed to update thread after run", "thread_id", thread.ID, "error", uErr)
	}

	if runErr != nil {
		return thread, runErr
	}
	return thread, nil
}

func (s *chatService) resolveThread(ctx context.Context, in SendMessageInput) (*types.ChatThread, error) {
	if in.ThreadID != nil && *in.ThreadID != uuid.Nil {
		thread, err := s.threads.GetByID(ctx, nil, *in.ThreadID)
		if err != nil {
			return nil, err
		}
		if thread == nil || thread.UserID != in.UserID {
			return nil, fmt.Errorf("thread %s not found", *in.ThreadID)
		}
		return thread, nil
	}
	return s.CreateThread(ctx, in.UserID, "", nil)
}

func (s *chatService) CreateThread(ctx context.Context, userID uuid.UUID, title string, roomID *uuid.UUID) (*types.ChatThread, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	thread := &types.ChatThread{
		ID:     uuid.New(),
		UserID: userID,
		Title:  strings.TrimSpace(title),
		Phase:  types.PhaseIntake,
		RoomID: roomID,
	}
	if _, err := s.threads.Create(ctx, nil, []*types.ChatThread{thread}); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return thread, nil
}

func (s *chatService) GetThread(ctx context.Context, userID, threadID uuid.UUID) (*types.ChatThread, error) {
	thread, err := s.threads.GetByID(ctx, nil, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil || thread.UserID != userID {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	return thread, nil
}

func (s *chatService) ListThreads(ctx context.Context, userID uuid.UUID) ([]*types.ChatThread, error) {
	return s.threads.ListByUser(ctx, nil, userID, 100)
}

func (s *chatService) ListTurns(ctx context.Context, userID, threadID uuid.UUID) ([]*types.ChatTurn, error) {
	if _, err := s.GetThread(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return s.turns.ListByThread(ctx, nil, threadID)
}

func titleFromText(text string) string {
	text = strings.TrimSpace(text)
	const max = 60
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
