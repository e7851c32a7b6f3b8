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

type CreateRoomInput struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Dimensions map[string]any `json:"dimensions,omitempty"`
	Notes      string         `json:"notes,omitempty"`
}

type RoomService interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateRoomInput) (*types.Room, error)
	GetByID(ctx context.Context, userID, roomID uuid.UUID) (*types.Room, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Room, error)
	Update(ctx context.Context, userID, roomID uuid.UUID, updates map[string]interface{}) (*types.Room, error)
	SavePlan(ctx context.Context, userID, roomID uuid.UUID, plan map[string]any) error
	SaveChecklist(ctx context.Context, userID, roomID uuid.UUID, checklist map[string]any) error
	Delete(ctx context.Context, userID, roomID uuid.UUID) error
}

type roomService struct {
	rooms repos.RoomRepo
	log   *logger.Logger
}

func NewRoomService(rooms repos.RoomRepo, log *logger.Logger) RoomService {
	return &roomService{rooms: rooms, log: log.With("service", "RoomService")}
}

func (s *roomService) Create(ctx context.Context, userID uuid.UUID, in CreateRoomInput) (*types.Room, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("room name required")
	}
	room := &types.Room{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Kind:   strings.TrimSpace(in.Kind),
		Notes:  strings.TrimSpace(in.Notes),
	}
	if room.Kind == "" {
		room.Kind = "living_room"
	}
	if in.Dimensions != nil {
		raw, err := json.Marshal(in.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("invalid dimensions: %w", err)
		}
		room.Dimensions = datatypes.JSON(raw)
	}
	if _, err := s.rooms.Create(ctx, nil, []*types.Room{room}); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

func (s *roomService) GetByID(ctx context.Context, userID, roomID uuid.UUID) (*types.Room, error) {
	room, err := s.rooms.GetByID(ctx, nil, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil || room.UserID != userID {
		return nil, fmt.Errorf("room %s not found", roomID)
	}
	return room, nil
}

func (s *roomService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Room, error) {
	return s.rooms.ListByUser(ctx, nil, userID)
}

func (s *roomService) Update(ctx context.Context, userID, roomID uuid.UUID, updates map[string]interface{}) (*types.Room, error) {
	if _, err := s.GetByID(ctx, userID, roomID); err != nil {
		return nil, err
	}
	allowed := map[string]bool{"name": true, "kind": true, "notes": true, "dimensions": true}
	filtered := map[string]interface{}{}
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if err := s.rooms.UpdateFields(ctx, nil, roomID, filtered); err != nil {
		return nil, err
	}
	return s.rooms.GetByID(ctx, nil, roomID)
}

func (s *roomService) SavePlan(ctx context.Context, userID, roomID uuid.UUID, plan map[string]any) error {
	if _, err := s.GetByID(ctx, userID, roomID); err != nil {
		return err
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	return s.rooms.SetPlan(ctx, nil, roomID, datatypes.JSON(raw))
}

func (s *roomService) SaveChecklist(ctx context.Context, userID, roomID uuid.UUID, checklist map[string]any) error {
	if _, err := s.GetByID(ctx, userID, roomID); err != nil {
		return err
	}
	raw, err := json.Marshal(checklist)
	if err != nil {
		return fmt.Errorf("invalid checklist: %w", err)
	}
	return s.rooms.SetChecklist(ctx, nil, roomID, datatypes.JSON(raw))
}

func (s *roomService) Delete(ctx context.Context, userID, roomID uuid.UUID) error {
	if _, err := s.GetByID(ctx, userID, roomID); err != nil {
		return err
	}
	return s.rooms.Delete(ctx, nil, roomID)
}
