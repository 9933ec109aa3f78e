// Package clients keeps the customer directory used by sales.
package clients

import (
	"net/mail"
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"gorm.io/gorm"
)

const entityClient = "client"

type ClientInput struct {
	Name           string `json:"name"`
	DocumentNumber string `json:"document_number"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Address        string `json:"address"`
}

type ClientUpdate struct {
	Name           *string `json:"name"`
	DocumentNumber *string `json:"document_number"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
	Address        *string `json:"address"`
}

func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return "", apperr.Validation("invalid email")
	}
	return s, nil
}

func documentPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func unique(tx *gorm.DB, c models.Client) error {
	if c.DocumentNumber != nil {
		var n int64
		q := tx.Model(&models.Client{}).Where("document_number = ?", *c.DocumentNumber)
		if c.ID != 0 {
			q = q.Where("id <> ?", c.ID)
		}
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("a client with document %s already exists", *c.DocumentNumber)
		}
	}
	if c.Email != "" {
		var n int64
		q := tx.Model(&models.Client{}).Where("email = ?", c.Email)
		if c.ID != 0 {
			q = q.Where("id <> ?", c.ID)
		}
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("a client with email %s already exists", c.Email)
		}
	}
	return nil
}

func snapshot(c models.Client) map[string]any {
	return map[string]any{
		"name":            c.Name,
		"document_number": c.DocumentNumber,
		"phone":           c.Phone,
		"email":           c.Email,
		"address":         c.Address,
	}
}

func CreateClient(db *gorm.DB, in ClientInput, actor audit.Actor) (models.Client, error) {
	c := models.Client{
		Name:           strings.TrimSpace(in.Name),
		DocumentNumber: documentPtr(in.DocumentNumber),
		Phone:          strings.TrimSpace(in.Phone),
		Address:        strings.TrimSpace(in.Address),
		CreatedByID:    actor.UserID,
	}
	if c.Name == "" {
		return c, apperr.Validation("name is required")
	}
	var err error
	if c.Email, err = normalizeEmail(in.Email); err != nil {
		return c, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := unique(tx, c); err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return apperr.FromDB(err, entityClient)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityClient,
			EntityID:    c.ID,
			Action:      models.AuditActionCreate,
			Description: "client created: " + c.Name,
			After:       snapshot(c),
		})
	})
	return c, err
}

func GetClient(db *gorm.DB, id uint) (models.Client, error) {
	var c models.Client
	err := db.First(&c, id).Error
	return c, apperr.FromDB(err, entityClient)
}

func UpdateClient(db *gorm.DB, id uint, upd ClientUpdate, actor audit.Actor) (models.Client, error) {
	var c models.Client
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return apperr.FromDB(err, entityClient)
		}
		before := snapshot(c)

		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperr.Validation("name cannot be empty")
			}
			c.Name = name
		}
		if upd.DocumentNumber != nil {
			c.DocumentNumber = documentPtr(*upd.DocumentNumber)
		}
		if upd.Email != nil {
			email, err := normalizeEmail(*upd.Email)
			if err != nil {
				return err
			}
			c.Email = email
		}
		if upd.Phone != nil {
			c.Phone = strings.TrimSpace(*upd.Phone)
		}
		if upd.Address != nil {
			c.Address = strings.TrimSpace(*upd.Address)
		}
		if err := unique(tx, c); err != nil {
			return err
		}
		if err := tx.Save(&c).Error; err != nil {
			return apperr.FromDB(err, entityClient)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityClient,
			EntityID:    c.ID,
			Action:      models.AuditActionUpdate,
			Description: "client updated: " + c.Name,
			Before:      before,
			After:       snapshot(c),
		})
	})
	return c, err
}

// DeleteClient soft-deletes the client. Past sales keep their reference.
func DeleteClient(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var c models.Client
		if err := tx.First(&c, id).Error; err != nil {
			return apperr.FromDB(err, entityClient)
		}
		if err := tx.Delete(&c).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityClient,
			EntityID:    c.ID,
			Action:      models.AuditActionDelete,
			Description: "client deleted: " + c.Name,
			Before:      snapshot(c),
		})
	})
}

// ListClients searches name, document, email and phone.
func ListClients(db *gorm.DB, search string, page listing.Params) ([]models.Client, int64, error) {
	q := db.Model(&models.Client{})
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(document_number) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?",
			like, like, like, like)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Client
	err := page.Apply(q.Order("name, id")).Find(&out).Error
	return out, count, err
}
