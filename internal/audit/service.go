package audit

import (
	"encoding/json"
	"fmt"

	"tienda-backend/internal/models"

	"gorm.io/gorm"
)

// Actor identifies who performed an operation. The zero value is the
// system itself.
type Actor struct {
	UserID   *uint
	UserName string
}

type LogOptions struct {
	Actor       Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog appends an audit row using tx, so the entry commits or rolls
// back together with the change it describes.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	// jsonb rejects the empty string
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.Actor.UserID,
		UserName:    opts.Actor.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
