package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AssetStatusPending  = "pending"
	AssetStatusUploaded = "uploaded"
)

// Asset is an uploaded file reference (room photos, inspiration images).
// Rows are created when an upload URL is signed; the attachment resolver turns
// asset ids into fetchable URLs on demand.
type Asset struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	StorageKey  string `gorm:"column:storage_key;not null;uniqueIndex" json:"storage_key"`
	ContentType string `gorm:"column:content_type;not null;default:''" json:"content_type"`
	SizeBytes   int64  `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	Status      string `gorm:"column:status;not null;default:'pending';index" json:"status"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Asset) TableName() string { return "asset" }
