package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type ChatThreadRepo interface {
	Create(ctx context.Context, tx *gorm.DB, threads []*types.ChatThread) ([]*types.ChatThread, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatThread, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.ChatThread, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type chatThreadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatThreadRepo(db *gorm.DB, baseLog *logger.Logger) ChatThreadRepo {
	return &chatThreadRepo{db: db, log: baseLog.With("repo", "ChatThreadRepo")}
}

func (r *chatThreadRepo) Create(ctx context.Context, tx *gorm.DB, threads []*types.ChatThread) ([]*types.ChatThread, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(threads) == 0 {
		return []*types.ChatThread{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *chatThreadRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatThread, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var thread types.ChatThread
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&thread).Error; err != nil {
		return nil, err
	}
	if thread.ID == uuid.Nil {
		return nil, nil
	}
	return &thread, nil
}

func (r *chatThreadRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.ChatThread, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChatThread
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatThreadRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.ChatThread{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *chatThreadRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.ChatThread{}).Error
}
