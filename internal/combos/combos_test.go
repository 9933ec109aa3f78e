package combos

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

func member(p models.Product, qty int64, price string) MemberInput {
	d := decimal.RequireFromString(price)
	return MemberInput{ProductID: p.ID, SpecialPrice: &d, Quantity: qty}
}

func TestCreateCombo(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "chips", "1.00")
	b := testutil.Product(t, db, "soda", "1.50")

	combo, err := CreateCombo(db, ComboInput{
		Name:     "Snack pack",
		Products: []MemberInput{member(a, 2, "0.80"), member(b, 1, "1.20")},
	}, audit.Actor{})
	require.NoError(t, err)

	assert.True(t, combo.Active, "active by default")
	require.Len(t, combo.Lines, 2)
	assert.Equal(t, "chips", combo.Lines[0].Product.Name)
	assert.True(t, combo.TotalPrice().Equal(testutil.Dec("2.80")))

	var logs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_type = ?", "combo").Count(&logs).Error)
	assert.EqualValues(t, 1, logs)
}

func TestCreateComboValidation(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "chips", "1.00")
	off := false

	_, err := CreateCombo(db, ComboInput{Name: "Pack", Active: &off}, audit.Actor{})
	require.NoError(t, err)

	cases := []struct {
		name string
		in   ComboInput
		kind apperr.Kind
	}{
		{"empty name", ComboInput{Name: "  "}, apperr.KindValidation},
		{"duplicate name", ComboInput{Name: "PACK"}, apperr.KindConflict},
		{"zero quantity", ComboInput{Name: "x", Products: []MemberInput{member(a, 0, "1")}}, apperr.KindValidation},
		{"negative price", ComboInput{Name: "y", Products: []MemberInput{member(a, 1, "-1")}}, apperr.KindValidation},
		{"missing price", ComboInput{Name: "z", Products: []MemberInput{{ProductID: a.ID, Quantity: 1}}}, apperr.KindValidation},
		{"unknown product", ComboInput{Name: "w", Products: []MemberInput{{ProductID: 999, SpecialPrice: &decimal.Zero, Quantity: 1}}}, apperr.KindNotFound},
		{"repeated product", ComboInput{Name: "v", Products: []MemberInput{member(a, 1, "1"), member(a, 2, "1")}}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateCombo(db, tc.in, audit.Actor{})
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}

	var n int64
	require.NoError(t, db.Model(&models.Combo{}).Count(&n).Error)
	assert.EqualValues(t, 1, n, "failed creates leave nothing behind")
}

func TestActiveCombosBundleCount(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "chips", "1.00")
	b := testutil.Product(t, db, "soda", "1.50")
	testutil.Stock(t, db, a, 5)
	testutil.Stock(t, db, b, 2)

	_, err := CreateCombo(db, ComboInput{
		Name:     "Snack pack",
		Products: []MemberInput{member(a, 2, "0.80"), member(b, 1, "1.20")},
	}, audit.Actor{})
	require.NoError(t, err)

	_, err = CreateCombo(db, ComboInput{Name: "Empty"}, audit.Actor{})
	require.NoError(t, err)

	off := false
	_, err = CreateCombo(db, ComboInput{Name: "Hidden", Active: &off, Products: []MemberInput{member(a, 1, "1")}}, audit.Actor{})
	require.NoError(t, err)

	out, err := ActiveCombos(db)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Empty", out[0].Name)
	assert.EqualValues(t, 0, out[0].MaxSellableBundles)
	assert.Empty(t, out[0].Members)

	pack := out[1]
	assert.EqualValues(t, 2, pack.MaxSellableBundles)
	require.Len(t, pack.Members, 2)
	assert.EqualValues(t, 5, pack.Members[0].Available)
	assert.EqualValues(t, 2, pack.Members[0].BundlesPossible)
	assert.EqualValues(t, 2, pack.Members[1].Available)
	assert.EqualValues(t, 2, pack.Members[1].BundlesPossible)
	assert.True(t, pack.TotalPrice.Equal(testutil.Dec("2.80")))
}

func TestActiveCombosOutOfStockMember(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "chips", "1.00")
	b := testutil.Product(t, db, "soda", "1.50")
	testutil.Stock(t, db, a, 10)

	_, err := CreateCombo(db, ComboInput{
		Name:     "Pack",
		Products: []MemberInput{member(a, 1, "1"), member(b, 3, "1")},
	}, audit.Actor{})
	require.NoError(t, err)

	out, err := ActiveCombos(db)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 0, out[0].MaxSellableBundles)
}

func TestComboMembers(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "chips", "1.00")
	b := testutil.Product(t, db, "soda", "1.50")

	combo, err := CreateCombo(db, ComboInput{Name: "Pack", Products: []MemberInput{member(a, 1, "1.00")}}, audit.Actor{})
	require.NoError(t, err)

	line, err := AddProduct(db, combo.ID, member(b, 2, "1.25"))
	require.NoError(t, err)
	assert.Equal(t, "soda", line.Product.Name)

	_, err = AddProduct(db, combo.ID, member(b, 1, "1"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	qty := int64(4)
	updated, err := UpdateProduct(db, combo.ID, line.ID, MemberUpdate{Quantity: &qty})
	require.NoError(t, err)
	assert.EqualValues(t, 4, updated.Quantity)

	zero := int64(0)
	_, err = UpdateProduct(db, combo.ID, line.ID, MemberUpdate{Quantity: &zero})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := GetCombo(db, combo.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice().Equal(testutil.Dec("6.00")))

	require.NoError(t, RemoveProduct(db, combo.ID, line.ID))
	err = RemoveProduct(db, combo.ID, line.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err = GetCombo(db, combo.ID)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 1)

	// removed products can come back
	_, err = AddProduct(db, combo.ID, member(b, 1, "1"))
	require.NoError(t, err)
}

func TestUpdateAndDeleteCombo(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "chips", "1.00")

	combo, err := CreateCombo(db, ComboInput{Name: "Pack", Products: []MemberInput{member(a, 1, "1")}}, audit.Actor{})
	require.NoError(t, err)
	_, err = CreateCombo(db, ComboInput{Name: "Other"}, audit.Actor{})
	require.NoError(t, err)

	taken := "other"
	_, err = UpdateCombo(db, combo.ID, ComboUpdate{Name: &taken}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	off := false
	got, err := UpdateCombo(db, combo.ID, ComboUpdate{Active: &off}, audit.Actor{})
	require.NoError(t, err)
	assert.False(t, got.Active)

	active := true
	list, count, err := ListCombos(db, "", &active, listing.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, "Other", list[0].Name)

	require.NoError(t, DeleteCombo(db, combo.ID, audit.Actor{}))
	_, err = GetCombo(db, combo.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	var lines int64
	require.NoError(t, db.Model(&models.ComboLine{}).Where("combo_id = ?", combo.ID).Count(&lines).Error)
	assert.EqualValues(t, 0, lines)
}
