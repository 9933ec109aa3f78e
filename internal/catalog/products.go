// Package catalog manages products and their category tree.
package catalog

import (
	"fmt"
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/inventory"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const entityProduct = "product"

type ProductInput struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	MarkupPercent decimal.Decimal `json:"markup_percent"`
	SearchCode    string          `json:"search_code"`
	CategoryID    *uint           `json:"category_id"`
	SubcategoryID *uint           `json:"subcategory_id"`
}

type ProductUpdate struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	MarkupPercent *decimal.Decimal `json:"markup_percent"`
	SearchCode    *string          `json:"search_code"`
	CategoryID    *uint            `json:"category_id"`
	SubcategoryID *uint            `json:"subcategory_id"`
}

type ProductFilter struct {
	Search         string
	CategoryID     uint
	SubcategoryID  uint
	IncludeDeleted bool
}

// ProductStock is a product with its current availability.
type ProductStock struct {
	models.Product
	Available int64
}

// taken reports a conflict when another live row of model already holds
// value in column, ignoring case.
func taken(tx *gorm.DB, model any, column, value string, exceptID uint) error {
	var n int64
	q := tx.Model(model).Where("LOWER("+column+") = ?", strings.ToLower(value))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("%s %q is already in use", column, value)
	}
	return nil
}

func checkPrices(purchase, markup decimal.Decimal) error {
	if purchase.IsNegative() {
		return apperr.Validation("purchase_price cannot be negative")
	}
	if markup.IsNegative() {
		return apperr.Validation("markup_percent cannot be negative")
	}
	return nil
}

// placement validates the category pair. A subcategory alone implies its
// parent category.
func placement(tx *gorm.DB, categoryID, subcategoryID *uint) (*uint, *uint, error) {
	if categoryID != nil && *categoryID == 0 {
		categoryID = nil
	}
	if subcategoryID != nil && *subcategoryID == 0 {
		subcategoryID = nil
	}
	if categoryID != nil {
		var cat models.Category
		if err := tx.First(&cat, *categoryID).Error; err != nil {
			return nil, nil, apperr.FromDB(err, "category")
		}
	}
	if subcategoryID == nil {
		return categoryID, nil, nil
	}
	var sub models.Subcategory
	if err := tx.First(&sub, *subcategoryID).Error; err != nil {
		return nil, nil, apperr.FromDB(err, "subcategory")
	}
	if categoryID == nil {
		categoryID = &sub.CategoryID
	} else if *categoryID != sub.CategoryID {
		return nil, nil, apperr.Validation("subcategory %d does not belong to category %d", sub.ID, *categoryID)
	}
	return categoryID, subcategoryID, nil
}

func productSnapshot(p models.Product) map[string]any {
	return map[string]any{
		"name":           p.Name,
		"search_code":    p.SearchCode,
		"purchase_price": p.PurchasePrice,
		"markup_percent": p.MarkupPercent,
		"final_price":    p.FinalPrice,
		"category_id":    p.CategoryID,
		"subcategory_id": p.SubcategoryID,
	}
}

func CreateProduct(db *gorm.DB, in ProductInput, actor audit.Actor) (models.Product, error) {
	p := models.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		PurchasePrice: in.PurchasePrice,
		MarkupPercent: in.MarkupPercent,
		SearchCode:    strings.TrimSpace(in.SearchCode),
		CreatedByID:   actor.UserID,
	}
	switch {
	case p.Name == "":
		return p, apperr.Validation("name is required")
	case p.SearchCode == "":
		return p, apperr.Validation("search_code is required")
	}
	if err := checkPrices(p.PurchasePrice, p.MarkupPercent); err != nil {
		return p, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if p.CategoryID, p.SubcategoryID, err = placement(tx, in.CategoryID, in.SubcategoryID); err != nil {
			return err
		}
		if err := taken(tx, &models.Product{}, "name", p.Name, 0); err != nil {
			return err
		}
		if err := taken(tx, &models.Product{}, "search_code", p.SearchCode, 0); err != nil {
			return err
		}
		if err := tx.Create(&p).Error; err != nil {
			return apperr.FromDB(err, entityProduct)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: "product created: " + p.Name,
			After:       productSnapshot(p),
		})
	})
	if err != nil {
		return models.Product{}, err
	}
	return GetProduct(db, p.ID)
}

func GetProduct(db *gorm.DB, id uint) (models.Product, error) {
	var p models.Product
	err := db.Preload("Category").Preload("Subcategory").First(&p, id).Error
	return p, apperr.FromDB(err, entityProduct)
}

// UpdateProduct applies upd. The final price follows any change to the
// purchase price or markup.
func UpdateProduct(db *gorm.DB, id uint, upd ProductUpdate, actor audit.Actor) (models.Product, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.First(&p, id).Error; err != nil {
			return apperr.FromDB(err, entityProduct)
		}
		before := productSnapshot(p)

		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperr.Validation("name cannot be empty")
			}
			if err := taken(tx, &models.Product{}, "name", name, p.ID); err != nil {
				return err
			}
			p.Name = name
		}
		if upd.SearchCode != nil {
			code := strings.TrimSpace(*upd.SearchCode)
			if code == "" {
				return apperr.Validation("search_code cannot be empty")
			}
			if err := taken(tx, &models.Product{}, "search_code", code, p.ID); err != nil {
				return err
			}
			p.SearchCode = code
		}
		if upd.Description != nil {
			p.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.PurchasePrice != nil {
			p.PurchasePrice = *upd.PurchasePrice
		}
		if upd.MarkupPercent != nil {
			p.MarkupPercent = *upd.MarkupPercent
		}
		if err := checkPrices(p.PurchasePrice, p.MarkupPercent); err != nil {
			return err
		}
		if upd.CategoryID != nil || upd.SubcategoryID != nil {
			cat, sub := p.CategoryID, p.SubcategoryID
			if upd.CategoryID != nil {
				cat = upd.CategoryID
				if upd.SubcategoryID == nil {
					sub = nil
				}
			}
			if upd.SubcategoryID != nil {
				sub = upd.SubcategoryID
			}
			var err error
			if p.CategoryID, p.SubcategoryID, err = placement(tx, cat, sub); err != nil {
				return err
			}
		}

		if err := tx.Save(&p).Error; err != nil {
			return apperr.FromDB(err, entityProduct)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: "product updated: " + p.Name,
			Before:      before,
			After:       productSnapshot(p),
		})
	})
	if err != nil {
		return models.Product{}, err
	}
	return GetProduct(db, id)
}

// DeleteProduct soft-deletes the product. Sales and orders keep showing it.
func DeleteProduct(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.First(&p, id).Error; err != nil {
			return apperr.FromDB(err, entityProduct)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ComboLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionDelete,
			Description: "product deleted: " + p.Name,
			Before:      productSnapshot(p),
		})
	})
}

func ListProducts(db *gorm.DB, f ProductFilter, page listing.Params) ([]ProductStock, int64, error) {
	q := db.Model(&models.Product{})
	if f.IncludeDeleted {
		q = q.Unscoped()
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(search_code) LIKE ? OR LOWER(description) LIKE ?", like, like, like)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.SubcategoryID != 0 {
		q = q.Where("subcategory_id = ?", f.SubcategoryID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var products []models.Product
	if err := page.Apply(q.Preload("Category").Preload("Subcategory").Order("name")).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	ids := make([]uint, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	stock, err := inventory.AvailableMany(db, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("product stock: %w", err)
	}
	out := make([]ProductStock, 0, len(products))
	for _, p := range products {
		out = append(out, ProductStock{Product: p, Available: stock[p.ID]})
	}
	return out, count, nil
}

// FindByCode looks a product up by its exact search code, ignoring case.
func FindByCode(db *gorm.DB, code string) (models.Product, error) {
	var p models.Product
	err := db.Where("LOWER(search_code) = ?", strings.ToLower(strings.TrimSpace(code))).First(&p).Error
	return p, apperr.FromDB(err, entityProduct)
}
