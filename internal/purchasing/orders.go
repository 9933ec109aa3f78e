// Package purchasing manages suppliers and purchase orders. Receiving an
// order is what brings stock into the shop.
package purchasing

import (
	"fmt"
	"strings"
	"time"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/inventory"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"
	"tienda-backend/internal/sequence"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entityOrder = "purchase_order"

type LineInput struct {
	ProductID     uint             `json:"product_id"`
	ProductName   string           `json:"product_name"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	Quantity      int64            `json:"quantity"`
	Notes         string           `json:"notes"`
}

type OrderInput struct {
	SupplierID  uint               `json:"supplier_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	Notes       string             `json:"notes"`
	OrderedAt   *time.Time         `json:"ordered_at"`
	Lines       []LineInput        `json:"lines"`
}

// OrderUpdate changes only the fields that are set. Lines, when set,
// replace every existing line.
type OrderUpdate struct {
	SupplierID *uint               `json:"supplier_id"`
	Status     *models.OrderStatus `json:"status"`
	Notes      *string             `json:"notes"`
	Lines      *[]LineInput        `json:"lines"`
}

type OrderFilter struct {
	Search         string
	Status         models.OrderStatus
	SupplierID     uint
	Range          listing.Range
	IncludeDeleted bool
}

func validateLine(i int, l LineInput) error {
	switch {
	case l.ProductID == 0:
		return apperr.Validation("line %d: product_id is required", i+1)
	case strings.TrimSpace(l.ProductName) == "":
		return apperr.Validation("line %d: product_name is required", i+1)
	case l.PurchasePrice == nil:
		return apperr.Validation("line %d: purchase_price is required", i+1)
	case l.PurchasePrice.IsNegative():
		return apperr.Validation("line %d: purchase_price cannot be negative", i+1)
	case l.Quantity < 1:
		return apperr.Validation("line %d: quantity must be at least 1", i+1)
	}
	return nil
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return apperr.Validation("an order needs at least one line")
	}
	seen := make(map[uint]bool, len(lines))
	for i, l := range lines {
		if err := validateLine(i, l); err != nil {
			return err
		}
		if seen[l.ProductID] {
			return apperr.Validation("product %d appears more than once", l.ProductID)
		}
		seen[l.ProductID] = true
	}
	return nil
}

func productExists(tx *gorm.DB, id uint) error {
	var n int64
	if err := tx.Model(&models.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(fmt.Sprintf("product %d", id))
	}
	return nil
}

func loadSupplier(tx *gorm.DB, id uint) (models.Supplier, error) {
	var s models.Supplier
	if id == 0 {
		return s, apperr.Validation("supplier_id is required")
	}
	if err := tx.First(&s, id).Error; err != nil {
		return s, apperr.FromDB(err, "supplier")
	}
	return s, nil
}

func buildLines(tx *gorm.DB, order *models.PurchaseOrder, in []LineInput) ([]models.PurchaseOrderLine, error) {
	lines := make([]models.PurchaseOrderLine, 0, len(in))
	for _, l := range in {
		if err := productExists(tx, l.ProductID); err != nil {
			return nil, err
		}
		lines = append(lines, models.PurchaseOrderLine{
			OrderID:       order.ID,
			SupplierID:    order.SupplierID,
			ProductID:     l.ProductID,
			ProductName:   strings.TrimSpace(l.ProductName),
			PurchasePrice: *l.PurchasePrice,
			Quantity:      l.Quantity,
			Notes:         strings.TrimSpace(l.Notes),
		})
	}
	return lines, nil
}

func lockOrder(tx *gorm.DB, id uint) (models.PurchaseOrder, error) {
	var o models.PurchaseOrder
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error; err != nil {
		return o, apperr.FromDB(err, "purchase order")
	}
	return o, nil
}

// recomputeTotal stores the sum of the live line subtotals on the header.
func recomputeTotal(tx *gorm.DB, o *models.PurchaseOrder) error {
	var lines []models.PurchaseOrderLine
	if err := tx.Where("order_id = ?", o.ID).Find(&lines).Error; err != nil {
		return err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	o.Total = total.Round(2)
	return tx.Model(o).Update("total", o.Total).Error
}

// receive marks the order received and records one receipt movement per
// line. Stock becomes available through the status itself.
func receive(tx *gorm.DB, o *models.PurchaseOrder, actor audit.Actor) error {
	now := time.Now()
	o.Status = models.OrderStatusReceived
	o.ReceivedAt = &now
	if err := tx.Model(o).Updates(map[string]any{"status": o.Status, "received_at": now}).Error; err != nil {
		return err
	}

	var lines []models.PurchaseOrderLine
	if err := tx.Where("order_id = ?", o.ID).Find(&lines).Error; err != nil {
		return err
	}
	ref := inventory.Ref{Type: entityOrder, ID: o.ID, Actor: actor}
	for _, l := range lines {
		if err := inventory.Credit(tx, l.ProductID, l.Quantity, models.MovementReceipt, ref); err != nil {
			return err
		}
	}
	return nil
}

func reload(tx *gorm.DB, id uint) (models.PurchaseOrder, error) {
	var o models.PurchaseOrder
	err := tx.Preload("Supplier").Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&o, id).Error
	return o, apperr.FromDB(err, "purchase order")
}

func CreateOrder(db *gorm.DB, in OrderInput, actor audit.Actor) (models.PurchaseOrder, error) {
	if in.Status == "" {
		in.Status = models.OrderStatusQuoting
	}
	if !ValidStatus(in.Status) {
		return models.PurchaseOrder{}, apperr.Validation("invalid status %q", in.Status)
	}
	if in.SupplierID == 0 {
		return models.PurchaseOrder{}, apperr.Validation("supplier_id is required")
	}
	if err := validateLines(in.Lines); err != nil {
		return models.PurchaseOrder{}, err
	}

	var id uint
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadSupplier(tx, in.SupplierID); err != nil {
			return err
		}

		number := strings.TrimSpace(in.OrderNumber)
		if number == "" {
			var err error
			if number, err = sequence.NextCode(tx, sequence.PrefixPurchaseOrder); err != nil {
				return err
			}
		} else {
			var n int64
			if err := tx.Unscoped().Model(&models.PurchaseOrder{}).Where("order_number = ?", number).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return apperr.Validation("order number %s already exists", number)
			}
			if err := sequence.Observe(tx, sequence.PrefixPurchaseOrder, number); err != nil {
				return err
			}
		}

		orderedAt := time.Now()
		if in.OrderedAt != nil {
			orderedAt = *in.OrderedAt
		}
		order := models.PurchaseOrder{
			SupplierID:  in.SupplierID,
			OrderNumber: number,
			Status:      models.OrderStatusQuoting,
			Total:       decimal.Zero,
			Notes:       strings.TrimSpace(in.Notes),
			OrderedAt:   orderedAt,
			CreatedByID: actor.UserID,
		}
		if err := tx.Create(&order).Error; err != nil {
			return apperr.FromDB(err, "purchase order")
		}

		lines, err := buildLines(tx, &order, in.Lines)
		if err != nil {
			return err
		}
		if err := tx.Create(&lines).Error; err != nil {
			return apperr.FromDB(err, "purchase order line")
		}
		if err := recomputeTotal(tx, &order); err != nil {
			return err
		}

		switch in.Status {
		case models.OrderStatusReceived:
			if err := receive(tx, &order, actor); err != nil {
				return err
			}
		case models.OrderStatusQuoting:
		default:
			order.Status = in.Status
			if err := tx.Model(&order).Update("status", order.Status).Error; err != nil {
				return err
			}
		}

		id = order.ID
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityOrder,
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: "purchase order created: " + order.OrderNumber,
			After:       snapshot(order, lines),
		})
	})
	if err != nil {
		return models.PurchaseOrder{}, err
	}
	return reload(db, id)
}

func UpdateOrder(db *gorm.DB, id uint, upd OrderUpdate, actor audit.Actor) (models.PurchaseOrder, error) {
	if upd.Lines != nil {
		if err := validateLines(*upd.Lines); err != nil {
			return models.PurchaseOrder{}, err
		}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, id)
		if err != nil {
			return err
		}
		before, err := reload(tx, id)
		if err != nil {
			return err
		}

		if (upd.Lines != nil || upd.SupplierID != nil) && Frozen(order.Status) {
			return apperr.Validation("order is %s and can no longer be modified", order.Status)
		}

		if upd.SupplierID != nil && *upd.SupplierID != order.SupplierID {
			if _, err := loadSupplier(tx, *upd.SupplierID); err != nil {
				return err
			}
			order.SupplierID = *upd.SupplierID
			if err := tx.Model(&order).Update("supplier_id", order.SupplierID).Error; err != nil {
				return err
			}
			if err := tx.Session(&gorm.Session{SkipHooks: true}).Model(&models.PurchaseOrderLine{}).
				Where("order_id = ?", order.ID).Update("supplier_id", order.SupplierID).Error; err != nil {
				return err
			}
		}

		if upd.Notes != nil {
			order.Notes = strings.TrimSpace(*upd.Notes)
			if err := tx.Model(&order).Update("notes", order.Notes).Error; err != nil {
				return err
			}
		}

		if upd.Lines != nil {
			if err := tx.Where("order_id = ?", order.ID).Delete(&models.PurchaseOrderLine{}).Error; err != nil {
				return err
			}
			lines, err := buildLines(tx, &order, *upd.Lines)
			if err != nil {
				return err
			}
			if err := tx.Create(&lines).Error; err != nil {
				return apperr.FromDB(err, "purchase order line")
			}
			if err := recomputeTotal(tx, &order); err != nil {
				return err
			}
		}

		if upd.Status != nil && *upd.Status != order.Status {
			if err := Transition(order.Status, *upd.Status); err != nil {
				return err
			}
			if *upd.Status == models.OrderStatusReceived {
				if err := receive(tx, &order, actor); err != nil {
					return err
				}
			} else {
				order.Status = *upd.Status
				if err := tx.Model(&order).Update("status", order.Status).Error; err != nil {
					return err
				}
			}
		}

		after, err := reload(tx, id)
		if err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityOrder,
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: "purchase order updated: " + order.OrderNumber,
			Before:      snapshot(before, before.Lines),
			After:       snapshot(after, after.Lines),
		})
	})
	if err != nil {
		return models.PurchaseOrder{}, err
	}
	return reload(db, id)
}

func ReceiveOrder(db *gorm.DB, id uint, actor audit.Actor) (models.PurchaseOrder, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusReceived {
			return apperr.Validation("order %s is already received", order.OrderNumber)
		}
		if err := Transition(order.Status, models.OrderStatusReceived); err != nil {
			return err
		}
		if err := receive(tx, &order, actor); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityOrder,
			EntityID:    order.ID,
			Action:      models.AuditActionReceive,
			Description: "purchase order received: " + order.OrderNumber,
		})
	})
	if err != nil {
		return models.PurchaseOrder{}, err
	}
	return reload(db, id)
}

// DeleteOrder soft-deletes the order and its lines. Deleting a received
// order withdraws its units from derived stock.
func DeleteOrder(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockOrder(tx, id); err != nil {
			return err
		}
		order, err := reload(tx, id)
		if err != nil {
			return err
		}

		if order.Status == models.OrderStatusReceived {
			ref := inventory.Ref{Type: entityOrder, ID: order.ID, Actor: actor}
			for _, l := range order.Lines {
				if err := inventory.Void(tx, l.ProductID, l.Quantity, ref); err != nil {
					return err
				}
			}
		}

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.PurchaseOrderLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&order).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityOrder,
			EntityID:    order.ID,
			Action:      models.AuditActionDelete,
			Description: "purchase order deleted: " + order.OrderNumber,
			Before:      snapshot(order, order.Lines),
		})
	})
}

func GetOrder(db *gorm.DB, id uint) (models.PurchaseOrder, error) {
	return reload(db, id)
}

func ListOrders(db *gorm.DB, f OrderFilter, page listing.Params) ([]models.PurchaseOrder, int64, error) {
	q := db.Model(&models.PurchaseOrder{}).
		Joins("LEFT JOIN suppliers ON suppliers.id = purchase_orders.supplier_id")
	if f.IncludeDeleted {
		q = q.Unscoped()
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(purchase_orders.order_number) LIKE ? OR LOWER(suppliers.company_name) LIKE ? OR LOWER(purchase_orders.notes) LIKE ?",
			like, like, like)
	}
	if f.Status != "" {
		q = q.Where("purchase_orders.status = ?", f.Status)
	}
	if f.SupplierID != 0 {
		q = q.Where("purchase_orders.supplier_id = ?", f.SupplierID)
	}
	q = f.Range.Apply(q, "purchase_orders.ordered_at")

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.PurchaseOrder
	err := page.Apply(q.Preload("Supplier").Preload("Lines").
		Order("purchase_orders.ordered_at DESC, purchase_orders.id DESC")).
		Find(&orders).Error
	return orders, count, err
}

// NextOrderNumber previews the number the next order would receive.
func NextOrderNumber(db *gorm.DB) (string, error) {
	return sequence.Peek(db, sequence.PrefixPurchaseOrder)
}

func snapshot(o models.PurchaseOrder, lines []models.PurchaseOrderLine) map[string]any {
	ls := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		ls = append(ls, map[string]any{
			"product_id":     l.ProductID,
			"product_name":   l.ProductName,
			"purchase_price": l.PurchasePrice,
			"quantity":       l.Quantity,
			"subtotal":       l.Subtotal,
		})
	}
	return map[string]any{
		"id":           o.ID,
		"order_number": o.OrderNumber,
		"supplier_id":  o.SupplierID,
		"status":       o.Status,
		"total":        o.Total,
		"notes":        o.Notes,
		"lines":        ls,
	}
}
