package auth

import "tienda-backend/internal/models"

type Permission string

const (
	PermCatalogRead     Permission = "catalog:read"
	PermCatalogWrite    Permission = "catalog:write"
	PermClientsWrite    Permission = "clients:write"
	PermInventoryRead   Permission = "inventory:read"
	PermPurchasingRead  Permission = "purchasing:read"
	PermPurchasingWrite Permission = "purchasing:write"
	PermSalesRead       Permission = "sales:read"
	PermSalesWrite      Permission = "sales:write"
	PermReturnsWrite    Permission = "returns:write"
	PermReportsRead     Permission = "reports:read"
	PermAuditRead       Permission = "audit:read"
	PermUsersManage     Permission = "users:manage"
)

var allPermissions = []Permission{
	PermCatalogRead, PermCatalogWrite, PermClientsWrite, PermInventoryRead,
	PermPurchasingRead, PermPurchasingWrite, PermSalesRead, PermSalesWrite,
	PermReturnsWrite, PermReportsRead, PermAuditRead, PermUsersManage,
}

var rolePermissions = map[models.UserRole][]Permission{
	models.RoleAdmin: allPermissions,
	models.RoleManager: {
		PermCatalogRead, PermCatalogWrite, PermClientsWrite, PermInventoryRead,
		PermPurchasingRead, PermPurchasingWrite, PermSalesRead, PermSalesWrite,
		PermReturnsWrite, PermReportsRead, PermAuditRead,
	},
	models.RoleSeller: {
		PermCatalogRead, PermClientsWrite, PermInventoryRead,
		PermSalesRead, PermSalesWrite, PermReturnsWrite,
	},
	models.RoleAccountant: {
		PermCatalogRead, PermInventoryRead, PermPurchasingRead,
		PermSalesRead, PermReportsRead, PermAuditRead,
	},
	models.RoleWarehouse: {
		PermCatalogRead, PermCatalogWrite, PermInventoryRead,
		PermPurchasingRead, PermPurchasingWrite,
	},
}

// PermissionSet is resolved once per request from the caller's role.
type PermissionSet map[Permission]struct{}

func PermissionsFor(role models.UserRole) PermissionSet {
	set := PermissionSet{}
	for _, p := range rolePermissions[role] {
		set[p] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}
