package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
	TurnRoleSystem    = "system"
)

const (
	TurnTypeText       = "text"
	TurnTypeImage      = "image"
	TurnTypeToolCall   = "tool_call"
	TurnTypeToolResult = "tool_result"
)

// ChatTurn is one immutable step of conversation history: user message,
// assistant text, tool call, or tool result. Rows are append-only; ordering is
// monotonic by (thread_id, seq, created_at).
type ChatTurn struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ThreadID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_chat_turn_thread_seq,unique,priority:1" json:"thread_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Seq int64 `gorm:"column:seq;not null;index:idx_chat_turn_thread_seq,unique,priority:2" json:"seq"`

	Role string `gorm:"column:role;not null;index" json:"role"`
	Type string `gorm:"column:type;not null;index" json:"type"`

	Content string `gorm:"column:content;type:text;not null;default:''" json:"content"`

	// Resolved attachment URLs for image turns.
	ImageURLs datatypes.JSON `gorm:"type:jsonb;column:image_urls" json:"image_urls,omitempty"`

	ToolName string `gorm:"column:tool_name;not null;default:''" json:"tool_name,omitempty"`
	// Parsed tool output when the result is valid JSON; raw text otherwise
	// lives in Content and this stays empty.
	ToolOutput datatypes.JSON `gorm:"type:jsonb;column:tool_output" json:"tool_output,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (ChatTurn) TableName() string { return "chat_turn" }
