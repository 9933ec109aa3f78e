package models

import (
	"time"

	"gorm.io/gorm"
)

// Base: every table carries audit timestamps and a soft-delete marker.
// Default GORM queries skip soft-deleted rows; Unscoped() includes them.
type Base struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
