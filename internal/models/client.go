package models

type Client struct {
	Base
	Name           string  `gorm:"size:150;not null;index"`
	DocumentNumber *string `gorm:"size:30;uniqueIndex:idx_clients_document,where:deleted_at IS NULL"`
	Phone          string  `gorm:"size:30"`
	Email          string  `gorm:"size:100"`
	Address        string  `gorm:"size:255"`
	CreatedByID    *uint
}
