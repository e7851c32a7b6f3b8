package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type CreateStyleInput struct {
	Name    string         `json:"name"`
	Palette map[string]any `json:"palette,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
}

type StyleService interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateStyleInput) (*types.StyleProfile, error)
	GetByID(ctx context.Context, userID, styleID uuid.UUID) (*types.StyleProfile, error)
	GetByName(ctx context.Context, userID uuid.UUID, name string) (*types.StyleProfile, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.StyleProfile, error)
	Delete(ctx context.Context, userID, styleID uuid.UUID) error
}

type styleService struct {
	styles repos.StyleProfileRepo
	log    *logger.Logger
}

func NewStyleService(styles repos.StyleProfileRepo, log *logger.Logger) StyleService {
	return &styleService{styles: styles, log: log.With("service", "StyleService")}
}

func (s *styleService) Create(ctx context.Context, userID uuid.UUID, in CreateStyleInput) (*types.StyleProfile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("style name required")
	}
	profile := &types.StyleProfile{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
	}
	if in.Palette != nil {
		raw, err := json.Marshal(in.Palette)
		if err != nil {
			return nil, fmt.Errorf("invalid palette: %w", err)
		}
		profile.Palette = datatypes.JSON(raw)
	}
	if len(in.Tags) > 0 {
		raw, err := json.Marshal(in.Tags)
		if err != nil {
			return nil, fmt.Errorf("invalid tags: %w", err)
		}
		profile.Tags = datatypes.JSON(raw)
	}
	if _, err := s.styles.Create(ctx, nil, []*types.StyleProfile{profile}); err != nil {
		return nil, fmt.Errorf("failed to create style profile: %w", err)
	}
	return profile, nil
}

func (s *styleService) GetByID(ctx context.Context, userID, styleID uuid.UUID) (*types.StyleProfile, error) {
	profile, err := s.styles.GetByID(ctx, nil, styleID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.UserID != userID {
		return nil, fmt.Errorf("style profile %s not found", styleID)
	}
	return profile, nil
}

func (s *styleService) GetByName(ctx context.Context, userID uuid.UUID, name string) (*types.StyleProfile, error) {
	return s.styles.GetByName(ctx, nil, userID, strings.TrimSpace(name))
}

func (s *styleService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.StyleProfile, error) {
	return s.styles.ListByUser(ctx, nil, userID)
}

func (s *styleService) Delete(ctx context.Context, userID, styleID uuid.UUID) error {
	if _, err := s.GetByID(ctx, userID, styleID); err != nil {
		return err
	}
	return s.styles.Delete(ctx, nil, styleID)
}
