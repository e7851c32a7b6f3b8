package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type StyleProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, profiles []*types.StyleProfile) ([]*types.StyleProfile, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StyleProfile, error)
	GetByName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) (*types.StyleProfile, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StyleProfile, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type styleProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStyleProfileRepo(db *gorm.DB, baseLog *logger.Logger) StyleProfileRepo {
	return &styleProfileRepo{db: db, log: baseLog.With("repo", "StyleProfileRepo")}
}

func (r *styleProfileRepo) Create(ctx context.Context, tx *gorm.DB, profiles []*types.StyleProfile) ([]*types.StyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(profiles) == 0 {
		return []*types.StyleProfile{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *styleProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var profile types.StyleProfile
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&profile).Error; err != nil {
		return nil, err
	}
	if profile.ID == uuid.Nil {
		return nil, nil
	}
	return &profile, nil
}

// GetByName matches case-insensitively so the lookup_style tool can take the
// model's free-text style name directly.
func (r *styleProfileRepo) GetByName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) (*types.StyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || name == "" {
		return nil, nil
	}
	var profile types.StyleProfile
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND LOWER(name) = LOWER(?)", userID, name).
		Limit(1).
		Find(&profile).Error; err != nil {
		return nil, err
	}
	if profile.ID == uuid.Nil {
		return nil, nil
	}
	return &profile, nil
}

func (r *styleProfileRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StyleProfile
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

func (r *styleProfileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.StyleProfile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *styleProfileRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.StyleProfile{}).Error
}
