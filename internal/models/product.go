package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	Base
	CategoryID    *uint `gorm:"index"`
	Category      *Category
	SubcategoryID *uint `gorm:"index"`
	Subcategory   *Subcategory
	Name          string          `gorm:"size:200;not null;uniqueIndex:idx_products_name,where:deleted_at IS NULL"`
	Description   string          `gorm:"type:text"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MarkupPercent decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	FinalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"` // PurchasePrice * (1 + MarkupPercent/100)
	SearchCode    string          `gorm:"size:100;not null;uniqueIndex:idx_products_search_code,where:deleted_at IS NULL"`
	CreatedByID   *uint
}

// FinalPrice is the selling price rounded to two decimals.
func FinalPrice(purchase, markupPercent decimal.Decimal) decimal.Decimal {
	return purchase.Add(purchase.Mul(markupPercent).Div(hundred)).Round(2)
}

func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.FinalPrice = FinalPrice(p.PurchasePrice, p.MarkupPercent)
	return nil
}
