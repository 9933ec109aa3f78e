// Package combos manages product bundles sold at special prices and
// reports how many bundles current stock can cover.
package combos

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

const entityCombo = "combo"

type MemberInput struct {
	ProductID    uint             `json:"product_id"`
	SpecialPrice *decimal.Decimal `json:"special_price"`
	Quantity     int64            `json:"quantity"`
}

type ComboInput struct {
	Name     string        `json:"name"`
	Active   *bool         `json:"active"` // true when omitted
	Products []MemberInput `json:"products"`
}

type ComboUpdate struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

type MemberUpdate struct {
	SpecialPrice *decimal.Decimal `json:"special_price"`
	Quantity     *int64           `json:"quantity"`
}

type MemberAvailability struct {
	LineID          uint            `json:"line_id"`
	ProductID       uint            `json:"product_id"`
	ProductName     string          `json:"product_name"`
	SpecialPrice    decimal.Decimal `json:"special_price"`
	Quantity        int64           `json:"quantity"`
	Available       int64           `json:"available"`
	BundlesPossible int64           `json:"bundles_possible"`
}

type ComboAvailability struct {
	ComboID            uint                 `json:"combo_id"`
	Name               string               `json:"name"`
	TotalPrice         decimal.Decimal      `json:"total_price"`
	MaxSellableBundles int64                `json:"max_sellable_bundles"`
	Members            []MemberAvailability `json:"members"`
}

func validateMember(m MemberInput) error {
	switch {
	case m.ProductID == 0:
		return apperr.Validation("product_id is required")
	case m.SpecialPrice == nil:
		return apperr.Validation("special_price is required")
	case m.SpecialPrice.IsNegative():
		return apperr.Validation("special_price cannot be negative")
	case m.Quantity < 1:
		return apperr.Validation("quantity must be at least 1")
	}
	return nil
}

func nameTaken(tx *gorm.DB, name string, exceptID uint) error {
	var n int64
	q := tx.Model(&models.Combo{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("a combo named %q already exists", name)
	}
	return nil
}

func addMember(tx *gorm.DB, comboID uint, m MemberInput) (models.ComboLine, error) {
	line := models.ComboLine{ComboID: comboID, ProductID: m.ProductID, Quantity: m.Quantity}
	if err := validateMember(m); err != nil {
		return line, err
	}
	line.SpecialPrice = *m.SpecialPrice

	var p models.Product
	if err := tx.First(&p, m.ProductID).Error; err != nil {
		return line, apperr.FromDB(err, fmt.Sprintf("product %d", m.ProductID))
	}
	var n int64
	if err := tx.Model(&models.ComboLine{}).
		Where("combo_id = ? AND product_id = ?", comboID, m.ProductID).Count(&n).Error; err != nil {
		return line, err
	}
	if n > 0 {
		return line, apperr.Validation("product %s is already in this combo", p.Name)
	}
	if err := tx.Create(&line).Error; err != nil {
		return line, apperr.FromDB(err, "combo product")
	}
	line.Product = p
	return line, nil
}

func CreateCombo(db *gorm.DB, in ComboInput, actor audit.Actor) (models.Combo, error) {
	combo := models.Combo{Name: strings.TrimSpace(in.Name), Active: true, CreatedByID: actor.UserID}
	if combo.Name == "" {
		return combo, apperr.Validation("name is required")
	}
	if in.Active != nil {
		combo.Active = *in.Active
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := nameTaken(tx, combo.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(&combo).Error; err != nil {
			return apperr.FromDB(err, entityCombo)
		}
		for _, m := range in.Products {
			if _, err := addMember(tx, combo.ID, m); err != nil {
				return err
			}
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityCombo,
			EntityID:    combo.ID,
			Action:      models.AuditActionCreate,
			Description: "combo created: " + combo.Name,
		})
	})
	if err != nil {
		return models.Combo{}, err
	}
	return GetCombo(db, combo.ID)
}

func GetCombo(db *gorm.DB, id uint) (models.Combo, error) {
	var c models.Combo
	err := db.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product").First(&c, id).Error
	return c, apperr.FromDB(err, entityCombo)
}

func ListCombos(db *gorm.DB, search string, active *bool, page listing.Params) ([]models.Combo, int64, error) {
	q := db.Model(&models.Combo{})
	if s := strings.TrimSpace(search); s != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if active != nil {
		q = q.Where("active = ?", *active)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Combo
	err := page.Apply(q.Preload("Lines").Preload("Lines.Product").Order("created_at DESC, id DESC")).Find(&out).Error
	return out, count, err
}

func UpdateCombo(db *gorm.DB, id uint, upd ComboUpdate, actor audit.Actor) (models.Combo, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var c models.Combo
		if err := tx.First(&c, id).Error; err != nil {
			return apperr.FromDB(err, entityCombo)
		}
		before := map[string]any{"name": c.Name, "active": c.Active}

		updates := map[string]any{}
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return apperr.Validation("name cannot be empty")
			}
			if err := nameTaken(tx, name, c.ID); err != nil {
				return err
			}
			updates["name"] = name
		}
		if upd.Active != nil {
			updates["active"] = *upd.Active
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&c).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, entityCombo)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityCombo,
			EntityID:    c.ID,
			Action:      models.AuditActionUpdate,
			Description: "combo updated: " + c.Name,
			Before:      before,
			After:       updates,
		})
	})
	if err != nil {
		return models.Combo{}, err
	}
	return GetCombo(db, id)
}

func DeleteCombo(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var c models.Combo
		if err := tx.First(&c, id).Error; err != nil {
			return apperr.FromDB(err, entityCombo)
		}
		if err := tx.Where("combo_id = ?", id).Delete(&models.ComboLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&c).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityCombo,
			EntityID:    c.ID,
			Action:      models.AuditActionDelete,
			Description: "combo deleted: " + c.Name,
		})
	})
}

func AddProduct(db *gorm.DB, comboID uint, in MemberInput) (models.ComboLine, error) {
	var line models.ComboLine
	err := db.Transaction(func(tx *gorm.DB) error {
		var c models.Combo
		if err := tx.First(&c, comboID).Error; err != nil {
			return apperr.FromDB(err, entityCombo)
		}
		var err error
		line, err = addMember(tx, comboID, in)
		return err
	})
	return line, err
}

func UpdateProduct(db *gorm.DB, comboID, lineID uint, upd MemberUpdate) (models.ComboLine, error) {
	var line models.ComboLine
	if err := db.Preload("Product").Where("id = ? AND combo_id = ?", lineID, comboID).First(&line).Error; err != nil {
		return line, apperr.FromDB(err, "combo product")
	}
	updates := map[string]any{}
	if upd.SpecialPrice != nil {
		if upd.SpecialPrice.IsNegative() {
			return line, apperr.Validation("special_price cannot be negative")
		}
		line.SpecialPrice = *upd.SpecialPrice
		updates["special_price"] = line.SpecialPrice
	}
	if upd.Quantity != nil {
		if *upd.Quantity < 1 {
			return line, apperr.Validation("quantity must be at least 1")
		}
		line.Quantity = *upd.Quantity
		updates["quantity"] = line.Quantity
	}
	if len(updates) == 0 {
		return line, nil
	}
	err := db.Model(&models.ComboLine{}).Where("id = ?", line.ID).Updates(updates).Error
	return line, err
}

func RemoveProduct(db *gorm.DB, comboID, lineID uint) error {
	res := db.Where("id = ? AND combo_id = ?", lineID, comboID).Delete(&models.ComboLine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("combo product")
	}
	return nil
}

// ActiveCombos reports, for every active combo, how many complete
// bundles the current stock allows. A combo without members allows none.
func ActiveCombos(db *gorm.DB) ([]ComboAvailability, error) {
	var combos []models.Combo
	if err := db.Where("active = ?", true).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product").
		Order("name").Find(&combos).Error; err != nil {
		return nil, err
	}

	var ids []uint
	for _, c := range combos {
		for _, l := range c.Lines {
			ids = append(ids, l.ProductID)
		}
	}
	stock, err := inventory.AvailableMany(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ComboAvailability, 0, len(combos))
	for _, c := range combos {
		ca := ComboAvailability{
			ComboID:    c.ID,
			Name:       c.Name,
			TotalPrice: c.TotalPrice(),
			Members:    make([]MemberAvailability, 0, len(c.Lines)),
		}
		for i, l := range c.Lines {
			avail := stock[l.ProductID]
			possible := avail / l.Quantity
			ca.Members = append(ca.Members, MemberAvailability{
				LineID:          l.ID,
				ProductID:       l.ProductID,
				ProductName:     l.Product.Name,
				SpecialPrice:    l.SpecialPrice,
				Quantity:        l.Quantity,
				Available:       avail,
				BundlesPossible: possible,
			})
			if i == 0 || possible < ca.MaxSellableBundles {
				ca.MaxSellableBundles = possible
			}
		}
		out = append(out, ca)
	}
	return out, nil
}
