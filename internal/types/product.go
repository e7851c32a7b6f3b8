package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Product struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Name     string `gorm:"type:text;not null;index" json:"name"`
	Category string `gorm:"type:text;not null;index" json:"category"`

	PriceCents int64  `gorm:"column:price_cents;not null;default:0;index" json:"price_cents"`
	Currency   string `gorm:"type:text;not null;default:'USD'" json:"currency"`

	VendorURL string `gorm:"column:vendor_url;type:text;not null;default:''" json:"vendor_url,omitempty"`
	ImageKey  string `gorm:"column:image_key;type:text;not null;default:''" json:"image_key,omitempty"`

	Tags datatypes.JSON `gorm:"type:jsonb;column:tags" json:"tags,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Product) TableName() string { return "product" }
