package models

// All lists every table in migration order.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Subcategory{},
		&Product{},
		&Client{},
		&Supplier{},
		&PurchaseOrder{},
		&PurchaseOrderLine{},
		&Sale{},
		&SaleLine{},
		&SaleReturn{},
		&InventoryLot{},
		&Combo{},
		&ComboLine{},
		&CodeSequence{},
		&AuditLog{},
	}
}
