package agent

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Turn is one immutable persisted step of conversation history. ToolOutput
// is set only when the tool result parsed as JSON; otherwise the raw text
// lives in Content and ToolOutput stays nil.
type Turn struct {
	ThreadID   uuid.UUID
	UserID     uuid.UUID
	Role       string
	Type       string
	Content    string
	ImageURLs  []string
	ToolName   string
	ToolOutput json.RawMessage
}

// TurnStore is the durable append-only log of every user/assistant/tool turn.
// Append must complete before the loop proceeds past the step that produced
// the turn.
type TurnStore interface {
	Append(ctx context.Context, t Turn) error
	// ListRecent returns up to limit turns for the thread, oldest first.
	ListRecent(ctx context.Context, threadID uuid.UUID, limit int) ([]Turn, error)
}

// PhaseLookup resolves the thread's current workflow phase. Lookup failures
// are non-fatal; callers default to the intake phase.
type PhaseLookup interface {
	GetPhase(ctx context.Context, threadID uuid.UUID) (string, error)
}

// AttachmentResolver turns an asset id into a fetchable URL.
type AttachmentResolver interface {
	Resolve(ctx context.Context, assetID string) (string, error)
}
