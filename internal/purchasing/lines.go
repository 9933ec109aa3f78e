package purchasing

import (
	"fmt"
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LineUpdate struct {
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	Quantity      *int64           `json:"quantity"`
	Notes         *string          `json:"notes"`
}

// openOrder locks the order and refuses received or cancelled ones.
func openOrder(tx *gorm.DB, orderID uint) (models.PurchaseOrder, error) {
	order, err := lockOrder(tx, orderID)
	if err != nil {
		return order, err
	}
	if Frozen(order.Status) {
		return order, apperr.Validation("order is %s and its lines can no longer change", order.Status)
	}
	return order, nil
}

func lineOf(tx *gorm.DB, orderID, lineID uint) (models.PurchaseOrderLine, error) {
	var l models.PurchaseOrderLine
	err := tx.Where("id = ? AND order_id = ?", lineID, orderID).First(&l).Error
	return l, apperr.FromDB(err, "purchase order line")
}

func logLineChange(tx *gorm.DB, order models.PurchaseOrder, actor audit.Actor, desc string, before, after any) error {
	return audit.WriteLog(tx, audit.LogOptions{
		Actor:       actor,
		EntityType:  entityOrder,
		EntityID:    order.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("%s: %s", order.OrderNumber, desc),
		Before:      before,
		After:       after,
	})
}

func ListLines(db *gorm.DB, orderID uint) ([]models.PurchaseOrderLine, error) {
	if _, err := GetOrder(db, orderID); err != nil {
		return nil, err
	}
	var lines []models.PurchaseOrderLine
	err := db.Where("order_id = ?", orderID).Order("id").Find(&lines).Error
	return lines, err
}

func AddLine(db *gorm.DB, orderID uint, in LineInput, actor audit.Actor) (models.PurchaseOrderLine, error) {
	var line models.PurchaseOrderLine
	if err := validateLine(0, in); err != nil {
		return line, err
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := openOrder(tx, orderID)
		if err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&models.PurchaseOrderLine{}).
			Where("order_id = ? AND product_id = ?", orderID, in.ProductID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("product %d is already on this order", in.ProductID)
		}

		lines, err := buildLines(tx, &order, []LineInput{in})
		if err != nil {
			return err
		}
		line = lines[0]
		if err := tx.Create(&line).Error; err != nil {
			return apperr.FromDB(err, "purchase order line")
		}
		if err := recomputeTotal(tx, &order); err != nil {
			return err
		}
		return logLineChange(tx, order, actor, "line added", nil, line.ProductName)
	})
	return line, err
}

func UpdateLine(db *gorm.DB, orderID, lineID uint, upd LineUpdate, actor audit.Actor) (models.PurchaseOrderLine, error) {
	var line models.PurchaseOrderLine
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := openOrder(tx, orderID)
		if err != nil {
			return err
		}
		if line, err = lineOf(tx, orderID, lineID); err != nil {
			return err
		}
		before := line

		if upd.PurchasePrice != nil {
			if upd.PurchasePrice.IsNegative() {
				return apperr.Validation("purchase_price cannot be negative")
			}
			line.PurchasePrice = *upd.PurchasePrice
		}
		if upd.Quantity != nil {
			if *upd.Quantity < 1 {
				return apperr.Validation("quantity must be at least 1")
			}
			line.Quantity = *upd.Quantity
		}
		if upd.Notes != nil {
			line.Notes = strings.TrimSpace(*upd.Notes)
		}

		if err := tx.Save(&line).Error; err != nil {
			return apperr.FromDB(err, "purchase order line")
		}
		if err := recomputeTotal(tx, &order); err != nil {
			return err
		}
		return logLineChange(tx, order, actor, "line updated",
			map[string]any{"quantity": before.Quantity, "purchase_price": before.PurchasePrice},
			map[string]any{"quantity": line.Quantity, "purchase_price": line.PurchasePrice})
	})
	return line, err
}

func DeleteLine(db *gorm.DB, orderID, lineID uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		order, err := openOrder(tx, orderID)
		if err != nil {
			return err
		}
		line, err := lineOf(tx, orderID, lineID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&line).Error; err != nil {
			return err
		}
		if err := recomputeTotal(tx, &order); err != nil {
			return err
		}
		return logLineChange(tx, order, actor, "line removed", line.ProductName, nil)
	})
}
