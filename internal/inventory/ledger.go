// Package inventory derives available stock and records stock movements.
//
// Availability is computed, never stored: units on live lines of received
// purchase orders minus units on live sale lines. InventoryLot rows are
// the movement history and do not feed the computation.
package inventory

import (
	"fmt"
	"time"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ref ties a movement to the document that caused it.
type Ref struct {
	Type  string
	ID    uint
	Actor audit.Actor
}

func received(db *gorm.DB) *gorm.DB {
	return db.Model(&models.PurchaseOrderLine{}).
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_lines.order_id AND purchase_orders.deleted_at IS NULL").
		Where("purchase_orders.status = ?", models.OrderStatusReceived)
}

func sold(db *gorm.DB) *gorm.DB {
	return db.Model(&models.SaleLine{}).
		Joins("JOIN sales ON sales.id = sale_lines.sale_id AND sales.deleted_at IS NULL")
}

// Raw is the unclamped derived stock of a product. It may be negative
// after a received order is deleted.
func Raw(db *gorm.DB, productID uint) (int64, error) {
	var in, out int64
	if err := received(db).Where("purchase_order_lines.product_id = ?", productID).
		Select("COALESCE(SUM(purchase_order_lines.quantity), 0)").Scan(&in).Error; err != nil {
		return 0, fmt.Errorf("sum receipts: %w", err)
	}
	if err := sold(db).Where("sale_lines.product_id = ?", productID).
		Select("COALESCE(SUM(sale_lines.quantity), 0)").Scan(&out).Error; err != nil {
		return 0, fmt.Errorf("sum sales: %w", err)
	}
	return in - out, nil
}

// Available is Raw clamped at zero.
func Available(db *gorm.DB, productID uint) (int64, error) {
	n, err := Raw(db, productID)
	if err != nil {
		return 0, err
	}
	return max(n, 0), nil
}

type productQty struct {
	ProductID uint
	Qty       int64
}

// AvailableMany returns the clamped stock of every id. Products without
// movements map to zero.
func AvailableMany(db *gorm.DB, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = 0
	}

	var ins, outs []productQty
	if err := received(db).Where("purchase_order_lines.product_id IN ?", ids).
		Select("purchase_order_lines.product_id AS product_id, SUM(purchase_order_lines.quantity) AS qty").
		Group("purchase_order_lines.product_id").Scan(&ins).Error; err != nil {
		return nil, fmt.Errorf("sum receipts: %w", err)
	}
	if err := sold(db).Where("sale_lines.product_id IN ?", ids).
		Select("sale_lines.product_id AS product_id, SUM(sale_lines.quantity) AS qty").
		Group("sale_lines.product_id").Scan(&outs).Error; err != nil {
		return nil, fmt.Errorf("sum sales: %w", err)
	}

	for _, r := range ins {
		out[r.ProductID] += r.Qty
	}
	for _, r := range outs {
		out[r.ProductID] -= r.Qty
	}
	for id, n := range out {
		out[id] = max(n, 0)
	}
	return out, nil
}

// Debit checks that qty units of the product can leave stock and records
// the movement. The product row stays locked until tx ends, so concurrent
// debits of the same product validate one after another. The caller must
// persist the matching sale line in tx before the next Debit.
func Debit(tx *gorm.DB, productID uint, qty int64, ref Ref) (models.Product, error) {
	var p models.Product
	if qty <= 0 {
		return p, apperr.Validation("quantity must be at least 1")
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, productID).Error; err != nil {
		return p, apperr.FromDB(err, fmt.Sprintf("product %d", productID))
	}

	avail, err := Raw(tx, productID)
	if err != nil {
		return p, err
	}
	if avail < qty {
		return p, apperr.InsufficientStock(p.ID, p.Name, qty, avail)
	}

	return p, record(tx, productID, -qty, models.MovementSale, ref)
}

// Credit records units coming back into stock. It never fails on
// availability.
func Credit(tx *gorm.DB, productID uint, qty int64, kind models.MovementKind, ref Ref) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be at least 1")
	}
	return record(tx, productID, qty, kind, ref)
}

// Void records units leaving stock because their source document was
// deleted. No availability check applies.
func Void(tx *gorm.DB, productID uint, qty int64, ref Ref) error {
	return record(tx, productID, -qty, models.MovementOrderVoid, ref)
}

func record(tx *gorm.DB, productID uint, signed int64, kind models.MovementKind, ref Ref) error {
	lot := models.InventoryLot{
		ProductID:     productID,
		Kind:          kind,
		Quantity:      signed,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		ReceivedAt:    time.Now(),
		CreatedByID:   ref.Actor.UserID,
	}
	if err := tx.Create(&lot).Error; err != nil {
		return fmt.Errorf("record %s movement: %w", kind, err)
	}
	return nil
}
