package models

import "github.com/shopspring/decimal"

type Combo struct {
	Base
	Name        string `gorm:"size:200;not null;uniqueIndex:idx_combos_name,where:deleted_at IS NULL"`
	Active      bool   `gorm:"not null;index"`
	CreatedByID *uint

	Lines []ComboLine `gorm:"foreignKey:ComboID"`
}

// TotalPrice: sum of special price * quantity over the loaded lines.
func (c *Combo) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.SpecialPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return total.Round(2)
}

type ComboLine struct {
	Base
	ComboID      uint `gorm:"not null;uniqueIndex:idx_combo_lines_combo_product,where:deleted_at IS NULL"`
	ProductID    uint `gorm:"not null;uniqueIndex:idx_combo_lines_combo_product,where:deleted_at IS NULL"`
	Product      Product
	SpecialPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity     int64           `gorm:"not null"`
}
