package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/types"
)

type ChatTurnRepo interface {
	// Append writes one turn with the next seq for its thread. Turns are
	// append-only; there is no update or delete.
	Append(ctx context.Context, tx *gorm.DB, turn *types.ChatTurn) (*types.ChatTurn, error)
	ListRecent(ctx context.Context, tx *gorm.DB, threadID uuid.UUID, limit int) ([]*types.ChatTurn, error)
	ListByThread(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]*types.ChatTurn, error)
	CountByThread(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) (int64, error)
}

type chatTurnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatTurnRepo(db *gorm.DB, baseLog *logger.Logger) ChatTurnRepo {
	return &chatTurnRepo{db: db, log: baseLog.With("repo", "ChatTurnRepo")}
}

func (r *chatTurnRepo) Append(ctx context.Context, tx *gorm.DB, turn *types.ChatTurn) (*types.ChatTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if turn == nil {
		return nil, nil
	}
	// seq is assigned inside the insert so concurrent writers on different
	// threads never race; the unique (thread_id, seq) index backs this up.
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var next int64
		if err := txx.Model(&types.ChatTurn{}).
			Where("thread_id = ?", turn.ThreadID).
			Select("COALESCE(MAX(seq), 0) + 1").
			Scan(&next).Error; err != nil {
			return err
		}
		turn.Seq = next
		return txx.Create(turn).Error
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// ListRecent returns the most recent turns for a thread in oldest-first order.
func (r *chatTurnRepo) ListRecent(ctx context.Context, tx *gorm.DB, threadID uuid.UUID, limit int) ([]*types.ChatTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChatTurn
	if threadID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

func (r *chatTurnRepo) ListByThread(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]*types.ChatTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChatTurn
	if threadID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatTurnRepo) CountByThread(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ChatTurn{}).
		Where("thread_id = ?", threadID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
