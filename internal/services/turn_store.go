package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nestplan/nestplan-backend/internal/agent"
	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/types"
)

// turnStore adapts the chat_turn repo to the engine's TurnStore interface,
// mapping the engine's in-memory turn shape onto the persisted row.
type turnStore struct {
	turns repos.ChatTurnRepo
	log   *logger.Logger
}

func NewTurnStore(turns repos.ChatTurnRepo, log *logger.Logger) agent.TurnStore {
	return &turnStore{turns: turns, log: log.With("component", "TurnStore")}
}

func (s *turnStore) Append(ctx context.Context, t agent.Turn) error {
	row := &types.ChatTurn{
		ThreadID: t.ThreadID,
		UserID:   t.UserID,
		Role:     t.Role,
		Type:     t.Type,
		Content:  t.Content,
		ToolName: t.ToolName,
	}
	if len(t.ImageURLs) > 0 {
		raw, err := json.Marshal(t.ImageURLs)
		if err == nil {
			row.ImageURLs = datatypes.JSON(raw)
		}
	}
	if len(t.ToolOutput) > 0 && json.Valid(t.ToolOutput) {
		row.ToolOutput = datatypes.JSON(t.ToolOutput)
	}
	_, err := s.turns.Append(ctx, nil, row)
	return err
}

func (s *turnStore) ListRecent(ctx context.Context, threadID uuid.UUID, limit int) ([]agent.Turn, error) {
	rows, err := s.turns.ListRecent(ctx, nil, threadID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]agent.Turn, 0, len(rows))
	for _, row := range rows {
		turn := agent.Turn{
			ThreadID: row.ThreadID,
			UserID:   row.UserID,
			Role:     row.Role,
			Type:     row.Type,
			Content:  row.Content,
			ToolName: row.ToolName,
		}
		if len(row.ImageURLs) > 0 {
			var urls []string
			if err := json.Unmarshal(row.ImageURLs, &urls); err == nil {
				turn.ImageURLs = urls
			}
		}
		if len(row.ToolOutput) > 0 {
			turn.ToolOutput = json.RawMessage(row.ToolOutput)
		}
		out = append(out, turn)
	}
	return out, nil
}
