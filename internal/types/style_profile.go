package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StyleProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Name string `gorm:"type:text;not null;index" json:"name"`

	// Color palette and tags: {"primary":"#d8cab8","accents":[...]}.
	Palette datatypes.JSON `gorm:"type:jsonb;column:palette" json:"palette,omitempty"`
	Tags    datatypes.JSON `gorm:"type:jsonb;column:tags" json:"tags,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StyleProfile) TableName() string { return "style_profile" }
