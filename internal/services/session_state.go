package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/types"
)

// SessionStateService owns the thread phase lifecycle. The engine only reads
// the phase; transitions happen here, driven by handlers and workflows.
type SessionStateService interface {
	GetPhase(ctx context.Context, threadID uuid.UUID) (string, error)
	SetPhase(ctx context.Context, threadID uuid.UUID, phase string) error
}

type sessionStateService struct {
	threads repos.ChatThreadRepo
	log     *logger.Logger
}

func NewSessionStateService(threads repos.ChatThreadRepo, log *logger.Logger) SessionStateService {
	return &sessionStateService{
		threads: threads,
		log:     log.With("service", "SessionStateService"),
	}
}

var validPhases = map[string]bool{
	types.PhaseIntake:    true,
	types.PhaseChecklist: true,
	types.PhasePlan:      true,
	types.PhaseRender:    true,
	types.PhasePayment:   true,
	types.PhaseComplete:  true,
	types.PhaseIterate:   true,
}

func (s *sessionStateService) GetPhase(ctx context.Context, threadID uuid.UUID) (string, error) {
	thread, err := s.threads.GetByID(ctx, nil, threadID)
	if err != nil {
		return "", err
	}
	if thread == nil {
		return types.PhaseIntake, nil
	}
	phase := strings.ToUpper(strings.TrimSpace(thread.Phase))
	if !validPhases[phase] {
		return types.PhaseIntake, nil
	}
	return phase, nil
}

func (s *sessionStateService) SetPhase(ctx context.Context, threadID uuid.UUID, phase string) error {
	phase = strings.ToUpper(strings.TrimSpace(phase))
	if !validPhases[phase] {
		return fmt.Errorf("invalid phase %q", phase)
	}
	s.log.Info("Thread phase transition", "thread_id", threadID, "phase", phase)
	return s.threads.UpdateFields(ctx, nil, threadID, map[string]interface{}{"phase": phase})
}
