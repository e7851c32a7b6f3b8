package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Room struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Name string `gorm:"type:text;not null" json:"name"`
	Kind string `gorm:"type:text;not null;default:'living_room';index" json:"kind"`

	// Free-form dimensions/layout captured during intake: {width_cm, length_cm, ...}.
	Dimensions datatypes.JSON `gorm:"type:jsonb;column:dimensions" json:"dimensions,omitempty"`

	// Current plan written by the save_room_plan tool.
	Plan datatypes.JSON `gorm:"type:jsonb;column:plan" json:"plan,omitempty"`

	// Checklist state written by the update_checklist tool.
	Checklist datatypes.JSON `gorm:"type:jsonb;column:checklist" json:"checklist,omitempty"`

	Notes string `gorm:"type:text;not null;default:''" json:"notes,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Room) TableName() string { return "room" }
