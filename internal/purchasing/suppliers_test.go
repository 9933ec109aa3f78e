package purchasing

import (
	"testing"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"
	"tienda-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplierNameCaseInsensitiveUnique(t *testing.T) {
	db := testutil.NewDB(t)

	s, err := CreateSupplier(db, SupplierInput{CompanyName: "Acme", City: "Quito"}, audit.Actor{})
	require.NoError(t, err)

	_, err = CreateSupplier(db, SupplierInput{CompanyName: "ACME", City: "Lima"}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = CreateSupplier(db, SupplierInput{CompanyName: "Foo"}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	same := "acme"
	_, err = UpdateSupplier(db, s.ID, SupplierUpdate{CompanyName: &same}, audit.Actor{})
	require.NoError(t, err, "renaming to itself is fine")

	require.NoError(t, DeleteSupplier(db, s.ID, audit.Actor{}))
	_, err = CreateSupplier(db, SupplierInput{CompanyName: "Acme", City: "Quito"}, audit.Actor{})
	require.NoError(t, err, "deleted names can be reused")
}

func TestDeleteSupplierWithOrders(t *testing.T) {
	db := testutil.NewDB(t)
	sup := testutil.Supplier(t, db, "Acme")
	p := testutil.Product(t, db, "rice", "2.00")
	_, err := CreateOrder(db, OrderInput{SupplierID: sup.ID, Lines: []LineInput{line(p, 1, "1")}}, audit.Actor{})
	require.NoError(t, err)

	err = DeleteSupplier(db, sup.ID, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSuppliersWithOrders(t *testing.T) {
	db := testutil.NewDB(t)
	acme := testutil.Supplier(t, db, "Acme")
	testutil.Supplier(t, db, "Idle")
	p := testutil.Product(t, db, "rice", "2.00")

	for _, qty := range []int64{2, 3} {
		_, err := CreateOrder(db, OrderInput{SupplierID: acme.ID, Lines: []LineInput{line(p, qty, "1.50")}}, audit.Actor{})
		require.NoError(t, err)
	}

	out, err := SuppliersWithOrders(db)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, acme.ID, out[0].SupplierID)
	assert.EqualValues(t, 2, out[0].OrderCount)
	assert.True(t, out[0].TotalAmount.Equal(decimal.RequireFromString("7.50")), out[0].TotalAmount.String())
}

func TestListSuppliersSearch(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := CreateSupplier(db, SupplierInput{CompanyName: "Acme", City: "Quito"}, audit.Actor{})
	require.NoError(t, err)
	_, err = CreateSupplier(db, SupplierInput{CompanyName: "Globex", City: "Lima", Description: "dairy"}, audit.Actor{})
	require.NoError(t, err)

	out, count, err := ListSuppliers(db, "DAIRY", listing.Range{}, listing.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, out, 1)
	assert.Equal(t, "Globex", out[0].CompanyName)

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_type = ?", entitySupplier).Count(&audits).Error)
	assert.EqualValues(t, 2, audits)
}
