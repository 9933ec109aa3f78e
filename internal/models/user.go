package models

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleManager    UserRole = "manager"
	RoleSeller     UserRole = "seller"
	RoleAccountant UserRole = "accountant"
	RoleWarehouse  UserRole = "warehouse"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSeller, RoleAccountant, RoleWarehouse:
		return true
	}
	return false
}

type User struct {
	Base
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null" json:"-"`
	Role         UserRole `gorm:"size:20;not null"`
	Active       bool     `gorm:"not null"`
}
