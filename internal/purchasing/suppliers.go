package purchasing

import (
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const entitySupplier = "supplier"

type SupplierInput struct {
	CompanyName string `json:"company_name"`
	City        string `json:"city"`
	Description string `json:"description"`
}

type SupplierUpdate struct {
	CompanyName *string `json:"company_name"`
	City        *string `json:"city"`
	Description *string `json:"description"`
}

// SupplierSummary aggregates the live orders of one supplier.
type SupplierSummary struct {
	SupplierID  uint            `json:"supplier_id"`
	CompanyName string          `json:"company_name"`
	City        string          `json:"city"`
	OrderCount  int64           `json:"order_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// nameTaken matches company names case-insensitively among live suppliers.
func nameTaken(tx *gorm.DB, name string, exceptID uint) error {
	var n int64
	q := tx.Model(&models.Supplier{}).Where("LOWER(company_name) = ?", strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("a supplier named %q already exists", name)
	}
	return nil
}

func CreateSupplier(db *gorm.DB, in SupplierInput, actor audit.Actor) (models.Supplier, error) {
	s := models.Supplier{
		CompanyName: strings.TrimSpace(in.CompanyName),
		City:        strings.TrimSpace(in.City),
		Description: strings.TrimSpace(in.Description),
		CreatedByID: actor.UserID,
	}
	if s.CompanyName == "" || s.City == "" {
		return s, apperr.Validation("company_name and city are required")
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := nameTaken(tx, s.CompanyName, 0); err != nil {
			return err
		}
		if err := tx.Create(&s).Error; err != nil {
			return apperr.FromDB(err, entitySupplier)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entitySupplier,
			EntityID:    s.ID,
			Action:      models.AuditActionCreate,
			Description: "supplier created: " + s.CompanyName,
			After:       s,
		})
	})
	return s, err
}

func UpdateSupplier(db *gorm.DB, id uint, upd SupplierUpdate, actor audit.Actor) (models.Supplier, error) {
	var s models.Supplier
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&s, id).Error; err != nil {
			return apperr.FromDB(err, entitySupplier)
		}
		before := s

		if upd.CompanyName != nil {
			name := strings.TrimSpace(*upd.CompanyName)
			if name == "" {
				return apperr.Validation("company_name cannot be empty")
			}
			if err := nameTaken(tx, name, s.ID); err != nil {
				return err
			}
			s.CompanyName = name
		}
		if upd.City != nil {
			city := strings.TrimSpace(*upd.City)
			if city == "" {
				return apperr.Validation("city cannot be empty")
			}
			s.City = city
		}
		if upd.Description != nil {
			s.Description = strings.TrimSpace(*upd.Description)
		}

		if err := tx.Save(&s).Error; err != nil {
			return apperr.FromDB(err, entitySupplier)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entitySupplier,
			EntityID:    s.ID,
			Action:      models.AuditActionUpdate,
			Description: "supplier updated: " + s.CompanyName,
			Before:      before,
			After:       s,
		})
	})
	return s, err
}

// DeleteSupplier refuses suppliers that still have live orders.
func DeleteSupplier(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var s models.Supplier
		if err := tx.First(&s, id).Error; err != nil {
			return apperr.FromDB(err, entitySupplier)
		}
		var n int64
		if err := tx.Model(&models.PurchaseOrder{}).Where("supplier_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("supplier %s still has %d purchase orders", s.CompanyName, n)
		}
		if err := tx.Delete(&s).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entitySupplier,
			EntityID:    s.ID,
			Action:      models.AuditActionDelete,
			Description: "supplier deleted: " + s.CompanyName,
			Before:      s,
		})
	})
}

func GetSupplier(db *gorm.DB, id uint) (models.Supplier, error) {
	var s models.Supplier
	err := db.First(&s, id).Error
	return s, apperr.FromDB(err, entitySupplier)
}

func ListSuppliers(db *gorm.DB, search string, rng listing.Range, page listing.Params) ([]models.Supplier, int64, error) {
	q := db.Model(&models.Supplier{})
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(company_name) LIKE ? OR LOWER(city) LIKE ? OR LOWER(description) LIKE ?", like, like, like)
	}
	q = rng.Apply(q, "created_at")

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Supplier
	err := page.Apply(q.Order("company_name")).Find(&out).Error
	return out, count, err
}

// SuppliersWithOrders lists every supplier that has at least one live
// order, with its order count and summed totals.
func SuppliersWithOrders(db *gorm.DB) ([]SupplierSummary, error) {
	var suppliers []models.Supplier
	if err := db.Where("id IN (?)", db.Model(&models.PurchaseOrder{}).Select("supplier_id")).
		Order("company_name").Find(&suppliers).Error; err != nil {
		return nil, err
	}

	out := make([]SupplierSummary, 0, len(suppliers))
	for _, s := range suppliers {
		var orders []models.PurchaseOrder
		if err := db.Select("id", "total").Where("supplier_id = ?", s.ID).Find(&orders).Error; err != nil {
			return nil, err
		}
		total := decimal.Zero
		for _, o := range orders {
			total = total.Add(o.Total)
		}
		out = append(out, SupplierSummary{
			SupplierID:  s.ID,
			CompanyName: s.CompanyName,
			City:        s.City,
			OrderCount:  int64(len(orders)),
			TotalAmount: total,
		})
	}
	return out, nil
}
