package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusQuoting   OrderStatus = "quoting"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusReceived  OrderStatus = "received"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PurchaseOrder: supplier order header. Total always equals the sum of the
// live line subtotals and is recomputed after every line mutation.
type PurchaseOrder struct {
	Base
	SupplierID  uint `gorm:"index;not null"`
	Supplier    Supplier
	OrderNumber string          `gorm:"size:20;not null;uniqueIndex"` // OP-00001
	Status      OrderStatus     `gorm:"size:20;not null;index"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes       string          `gorm:"type:text"`
	OrderedAt   time.Time       `gorm:"index;not null"`
	ReceivedAt  *time.Time
	CreatedByID *uint

	Lines []PurchaseOrderLine `gorm:"foreignKey:OrderID"`
}

type PurchaseOrderLine struct {
	Base
	OrderID       uint            `gorm:"not null;uniqueIndex:idx_po_lines_order_product,where:deleted_at IS NULL"`
	SupplierID    uint            `gorm:"index;not null"`
	ProductID     uint            `gorm:"not null;index:idx_po_lines_product;uniqueIndex:idx_po_lines_order_product,where:deleted_at IS NULL"`
	ProductName   string          `gorm:"size:200;not null"` // snapshot at order time
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity      int64           `gorm:"not null"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes         string          `gorm:"size:255"`
}

func (l *PurchaseOrderLine) BeforeSave(tx *gorm.DB) error {
	l.Subtotal = l.PurchasePrice.Mul(decimal.NewFromInt(l.Quantity)).Round(2)
	return nil
}
