package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

type Sale struct {
	Base
	Code          string `gorm:"size:20;not null;uniqueIndex"` // V-00001
	ClientID      *uint  `gorm:"index"`
	Client        *Client
	PaymentMethod PaymentMethod   `gorm:"size:20;not null;index"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tax           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Received      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Change        decimal.Decimal `gorm:"column:change_amount;type:decimal(12,2);not null"`
	Notes         string          `gorm:"size:255"`
	CreatedByID   *uint
	CreatedBy     *User

	Lines []SaleLine `gorm:"foreignKey:SaleID"`
}

type SaleLine struct {
	Base
	SaleID    uint `gorm:"index;not null"`
	ProductID uint `gorm:"index;not null"`
	Product   Product
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (l *SaleLine) BeforeSave(tx *gorm.DB) error {
	l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)).Round(2)
	return nil
}

// SaleReturn records units handed back from one sale line.
type SaleReturn struct {
	Base
	SaleID      uint   `gorm:"index;not null"`
	SaleCode    string `gorm:"size:20;not null;index"`
	SaleLineID  uint   `gorm:"index;not null"`
	ProductID   uint   `gorm:"index;not null"`
	Quantity    int64  `gorm:"not null"`
	CreatedByID *uint
}
