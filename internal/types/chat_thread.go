package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Thread phases. The conversation engine reads the phase but never mutates it;
// phase transitions belong to the session/workflow layer.
const (
	PhaseIntake    = "INTAKE"
	PhaseChecklist = "CHECKLIST"
	PhasePlan      = "PLAN"
	PhaseRender    = "RENDER"
	PhasePayment   = "PAYMENT"
	PhaseComplete  = "COMPLETE"
	PhaseIterate   = "ITERATE"
)

type ChatThread struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title string `gorm:"type:text;not null;default:''" json:"title"`
	Phase string `gorm:"type:text;not null;default:'INTAKE';index" json:"phase"`

	// Step counter for the in-flight loop; written back with each checkpoint.
	StepCount int `gorm:"not null;default:0" json:"step_count"`

	RoomID *uuid.UUID `gorm:"type:uuid;index" json:"room_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ChatThread) TableName() string { return "chat_thread" }
