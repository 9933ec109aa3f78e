package models

type Supplier struct {
	Base
	CompanyName string `gorm:"size:150;not null;uniqueIndex:idx_suppliers_company_name,where:deleted_at IS NULL"`
	City        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`
	CreatedByID *uint
}
