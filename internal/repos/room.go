package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type RoomRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rooms []*types.Room) ([]*types.Room, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Room, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Room, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SetPlan(ctx context.Context, tx *gorm.DB, id uuid.UUID, plan datatypes.JSON) error
	SetChecklist(ctx context.Context, tx *gorm.DB, id uuid.UUID, checklist datatypes.JSON) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type roomRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoomRepo(db *gorm.DB, baseLog *logger.Logger) RoomRepo {
	return &roomRepo{db: db, log: baseLog.With("repo", "RoomRepo")}
}

func (r *roomRepo) Create(ctx context.Context, tx *gorm.DB, rooms []*types.Room) ([]*types.Room, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rooms) == 0 {
		return []*types.Room{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Room, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var room types.Room
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&room).Error; err != nil {
		return nil, err
	}
	if room.ID == uuid.Nil {
		return nil, nil
	}
	return &room, nil
}

func (r *roomRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Room, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Room
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *roomRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Room{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *roomRepo) SetPlan(ctx context.Context, tx *gorm.DB, id uuid.UUID, plan datatypes.JSON) error {
	return r.UpdateFields(ctx, tx, id, map[string]interface{}{"plan": plan})
}

func (r *roomRepo) SetChecklist(ctx context.Context, tx *gorm.DB, id uuid.UUID, checklist datatypes.JSON) error {
	return r.UpdateFields(ctx, tx, id, map[string]interface{}{"checklist": checklist})
}

func (r *roomRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Room{}).Error
}
