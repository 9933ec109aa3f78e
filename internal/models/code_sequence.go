package models

import "time"

// CodeSequence is the single-writer counter behind human readable codes
// such as V-00001 and OP-00001.
type CodeSequence struct {
	Prefix    string `gorm:"primaryKey;size:10"`
	LastValue int64  `gorm:"not null"`
	UpdatedAt time.Time
}
