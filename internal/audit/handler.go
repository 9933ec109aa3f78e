package audit

import (
	"strconv"

	"tienda-backend/internal/config"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      *uint              `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  string             `json:"before_data"`
	AfterData   string             `json:"after_data"`
}

// GET /api/audit-logs?entity_type=sale&entity_id=1&user_id=2&page=1
func ListAuditLogsHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}

		dbq := db.WithContext(c.UserContext()).Model(&models.AuditLog{})

		if v, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil && v > 0 {
			dbq = dbq.Where("user_id = ?", v)
		}
		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}
		if v, err := strconv.ParseUint(c.Query("entity_id"), 10, 64); err == nil && v > 0 {
			dbq = dbq.Where("entity_id = ?", v)
		}
		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}
		dbq = rng.Apply(dbq, "created_at")

		var count int64
		if err := dbq.Count(&count).Error; err != nil {
			return err
		}

		var logs []models.AuditLog
		if err := page.Apply(dbq.Order("created_at DESC, id DESC")).Find(&logs).Error; err != nil {
			return err
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				BeforeData:  log.BeforeData,
				AfterData:   log.AfterData,
			})
		}

		return c.JSON(listing.NewPage(page, count, resp))
	}
}
