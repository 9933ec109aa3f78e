package models

import "time"

type MovementKind string

const (
	MovementReceipt   MovementKind = "receipt"
	MovementSale      MovementKind = "sale"
	MovementReturn    MovementKind = "return"
	MovementSaleVoid  MovementKind = "sale_void"
	MovementOrderVoid MovementKind = "order_void"
)

// InventoryLot: append-only record of a stock movement. Available stock is
// derived from purchase-order receipts and sale lines; these rows are the
// audit trail of how it moved.
type InventoryLot struct {
	Base
	ProductID     uint `gorm:"index;not null"`
	Product       Product
	Kind          MovementKind `gorm:"size:20;not null;index"`
	Quantity      int64        `gorm:"not null"` // positive = in, negative = out
	ReferenceType string       `gorm:"size:30"`
	ReferenceID   uint         `gorm:"index"`
	ReceivedAt    time.Time    `gorm:"index;not null"`
	CreatedByID   *uint
}
