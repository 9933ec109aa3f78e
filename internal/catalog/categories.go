package catalog

import (
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/models"

	"gorm.io/gorm"
)

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CategoryUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type SubcategoryInput struct {
	CategoryID  uint   `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func inUse(tx *gorm.DB, model any, column string, id uint, what string) error {
	var n int64
	if err := tx.Model(model).Where(column+" = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("still has %d %s", n, what)
	}
	return nil
}

func subNameTaken(tx *gorm.DB, categoryID uint, name string, exceptID uint) error {
	var n int64
	q := tx.Model(&models.Subcategory{}).
		Where("category_id = ? AND LOWER(name) = ?", categoryID, strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("subcategory %q already exists in this category", name)
	}
	return nil
}

// -------------------------
// Categories
// -------------------------

func CreateCategory(db *gorm.DB, in CategoryInput, actor audit.Actor) (models.Category, error) {
	cat := models.Category{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CreatedByID: actor.UserID,
	}
	if cat.Name == "" {
		return cat, apperr.Validation("name is required")
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := taken(tx, &models.Category{}, "name", cat.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(&cat).Error; err != nil {
			return apperr.FromDB(err, "category")
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "category",
			EntityID:    cat.ID,
			Action:      models.AuditActionCreate,
			Description: "category created: " + cat.Name,
		})
	})
	return cat, err
}

func ListCategories(db *gorm.DB) ([]models.Category, error) {
	var out []models.Category
	err := db.Order("name").Find(&out).Error
	return out, err
}

func GetCategory(db *gorm.DB, id uint) (models.Category, error) {
	var cat models.Category
	err := db.First(&cat, id).Error
	return cat, apperr.FromDB(err, "category")
}

func UpdateCategory(db *gorm.DB, id uint, upd CategoryUpdate, actor audit.Actor) (models.Category, error) {
	var cat models.Category
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cat, id).Error; err != nil {
			return apperr.FromDB(err, "category")
		}
		before := map[string]any{"name": cat.Name, "description": cat.Description}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperr.Validation("name cannot be empty")
			}
			if err := taken(tx, &models.Category{}, "name", name, cat.ID); err != nil {
				return err
			}
			cat.Name = name
		}
		if upd.Description != nil {
			cat.Description = strings.TrimSpace(*upd.Description)
		}
		if err := tx.Save(&cat).Error; err != nil {
			return apperr.FromDB(err, "category")
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "category",
			EntityID:    cat.ID,
			Action:      models.AuditActionUpdate,
			Description: "category updated: " + cat.Name,
			Before:      before,
			After:       map[string]any{"name": cat.Name, "description": cat.Description},
		})
	})
	return cat, err
}

// DeleteCategory refuses while products or subcategories still point at it.
func DeleteCategory(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		if err := tx.First(&cat, id).Error; err != nil {
			return apperr.FromDB(err, "category")
		}
		if err := inUse(tx, &models.Product{}, "category_id", id, "products"); err != nil {
			return err
		}
		if err := inUse(tx, &models.Subcategory{}, "category_id", id, "subcategories"); err != nil {
			return err
		}
		if err := tx.Delete(&cat).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "category",
			EntityID:    cat.ID,
			Action:      models.AuditActionDelete,
			Description: "category deleted: " + cat.Name,
		})
	})
}

// -------------------------
// Subcategories
// -------------------------

func CreateSubcategory(db *gorm.DB, in SubcategoryInput, actor audit.Actor) (models.Subcategory, error) {
	sub := models.Subcategory{
		CategoryID:  in.CategoryID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CreatedByID: actor.UserID,
	}
	switch {
	case sub.CategoryID == 0:
		return sub, apperr.Validation("category_id is required")
	case sub.Name == "":
		return sub, apperr.Validation("name is required")
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub.Category, sub.CategoryID).Error; err != nil {
			return apperr.FromDB(err, "category")
		}
		if err := subNameTaken(tx, sub.CategoryID, sub.Name, 0); err != nil {
			return err
		}
		if err := tx.Omit("Category").Create(&sub).Error; err != nil {
			return apperr.FromDB(err, "subcategory")
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "subcategory",
			EntityID:    sub.ID,
			Action:      models.AuditActionCreate,
			Description: "subcategory created: " + sub.Name,
		})
	})
	return sub, err
}

func ListSubcategories(db *gorm.DB, categoryID uint) ([]models.Subcategory, error) {
	q := db.Preload("Category").Order("name")
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	var out []models.Subcategory
	err := q.Find(&out).Error
	return out, err
}

func GetSubcategory(db *gorm.DB, id uint) (models.Subcategory, error) {
	var sub models.Subcategory
	err := db.Preload("Category").First(&sub, id).Error
	return sub, apperr.FromDB(err, "subcategory")
}

func UpdateSubcategory(db *gorm.DB, id uint, upd CategoryUpdate, actor audit.Actor) (models.Subcategory, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var sub models.Subcategory
		if err := tx.First(&sub, id).Error; err != nil {
			return apperr.FromDB(err, "subcategory")
		}
		updates := map[string]any{}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperr.Validation("name cannot be empty")
			}
			if err := subNameTaken(tx, sub.CategoryID, name, sub.ID); err != nil {
				return err
			}
			updates["name"] = name
		}
		if upd.Description != nil {
			updates["description"] = strings.TrimSpace(*upd.Description)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "subcategory")
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "subcategory",
			EntityID:    sub.ID,
			Action:      models.AuditActionUpdate,
			Description: "subcategory updated: " + sub.Name,
			After:       updates,
		})
	})
	if err != nil {
		return models.Subcategory{}, err
	}
	return GetSubcategory(db, id)
}

func DeleteSubcategory(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var sub models.Subcategory
		if err := tx.First(&sub, id).Error; err != nil {
			return apperr.FromDB(err, "subcategory")
		}
		if err := inUse(tx, &models.Product{}, "subcategory_id", id, "products"); err != nil {
			return err
		}
		if err := tx.Delete(&sub).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "subcategory",
			EntityID:    sub.ID,
			Action:      models.AuditActionDelete,
			Description: "subcategory deleted: " + sub.Name,
		})
	})
}
