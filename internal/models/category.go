package models

type Category struct {
	Base
	Name        string `gorm:"size:100;not null;uniqueIndex:idx_categories_name,where:deleted_at IS NULL"`
	Description string `gorm:"size:255"`
	CreatedByID *uint
}

type Subcategory struct {
	Base
	CategoryID  uint `gorm:"not null;uniqueIndex:idx_subcategories_category_name,where:deleted_at IS NULL"`
	Category    Category
	Name        string `gorm:"size:100;not null;uniqueIndex:idx_subcategories_category_name,where:deleted_at IS NULL"`
	Description string `gorm:"size:255"`
	CreatedByID *uint
}
