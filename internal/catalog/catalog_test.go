package catalog

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

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCreateProductDerivesFinalPrice(t *testing.T) {
	db := testutil.NewDB(t)

	p, err := CreateProduct(db, ProductInput{
		Name:          "Coffee",
		PurchasePrice: dec("10.00"),
		MarkupPercent: dec("33.33"),
		SearchCode:    "CAF-1",
	}, audit.Actor{})
	require.NoError(t, err)
	assert.True(t, p.FinalPrice.Equal(dec("13.33")), "got %s", p.FinalPrice)
}

func TestUpdateProductRecomputesFinalPrice(t *testing.T) {
	db := testutil.NewDB(t)
	p, err := CreateProduct(db, ProductInput{Name: "Tea", PurchasePrice: dec("4.00"), MarkupPercent: dec("50"), SearchCode: "TEA"}, audit.Actor{})
	require.NoError(t, err)
	assert.True(t, p.FinalPrice.Equal(dec("6.00")))

	p, err = UpdateProduct(db, p.ID, ProductUpdate{PurchasePrice: decp("8.00")}, audit.Actor{})
	require.NoError(t, err)
	assert.True(t, p.FinalPrice.Equal(dec("12.00")))

	p, err = UpdateProduct(db, p.ID, ProductUpdate{MarkupPercent: decp("0")}, audit.Actor{})
	require.NoError(t, err)
	assert.True(t, p.FinalPrice.Equal(dec("8.00")))

	var stored models.Product
	require.NoError(t, db.First(&stored, p.ID).Error)
	assert.True(t, stored.FinalPrice.Equal(dec("8.00")))
}

func TestProductUniqueness(t *testing.T) {
	db := testutil.NewDB(t)
	first, err := CreateProduct(db, ProductInput{Name: "Rice", PurchasePrice: dec("1"), SearchCode: "R1"}, audit.Actor{})
	require.NoError(t, err)
	other, err := CreateProduct(db, ProductInput{Name: "Beans", PurchasePrice: dec("1"), SearchCode: "B1"}, audit.Actor{})
	require.NoError(t, err)

	cases := []struct {
		name string
		in   ProductInput
		kind apperr.Kind
	}{
		{"duplicate name", ProductInput{Name: "RICE", PurchasePrice: dec("1"), SearchCode: "R2"}, apperr.KindConflict},
		{"duplicate code", ProductInput{Name: "Rice 2", PurchasePrice: dec("1"), SearchCode: "r1"}, apperr.KindConflict},
		{"missing name", ProductInput{SearchCode: "X"}, apperr.KindValidation},
		{"missing code", ProductInput{Name: "X"}, apperr.KindValidation},
		{"negative price", ProductInput{Name: "X", SearchCode: "X", PurchasePrice: dec("-1")}, apperr.KindValidation},
		{"negative markup", ProductInput{Name: "X", SearchCode: "X", MarkupPercent: dec("-5")}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateProduct(db, tc.in, audit.Actor{})
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}

	name := "rice"
	_, err = UpdateProduct(db, other.ID, ProductUpdate{Name: &name}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = UpdateProduct(db, first.ID, ProductUpdate{Name: &name}, audit.Actor{})
	require.NoError(t, err, "a product may keep its own name")
}

func TestProductPlacement(t *testing.T) {
	db := testutil.NewDB(t)
	drinks, err := CreateCategory(db, CategoryInput{Name: "Drinks"}, audit.Actor{})
	require.NoError(t, err)
	food, err := CreateCategory(db, CategoryInput{Name: "Food"}, audit.Actor{})
	require.NoError(t, err)
	hot, err := CreateSubcategory(db, SubcategoryInput{CategoryID: drinks.ID, Name: "Hot"}, audit.Actor{})
	require.NoError(t, err)

	p, err := CreateProduct(db, ProductInput{Name: "Tea", SearchCode: "T", SubcategoryID: &hot.ID}, audit.Actor{})
	require.NoError(t, err)
	require.NotNil(t, p.CategoryID)
	assert.Equal(t, drinks.ID, *p.CategoryID, "category follows the subcategory")
	require.NotNil(t, p.Subcategory)
	assert.Equal(t, "Hot", p.Subcategory.Name)

	_, err = CreateProduct(db, ProductInput{Name: "Bread", SearchCode: "B", CategoryID: &food.ID, SubcategoryID: &hot.ID}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	missing := uint(999)
	_, err = CreateProduct(db, ProductInput{Name: "Bread", SearchCode: "B", CategoryID: &missing}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// moving to another category drops the subcategory
	p, err = UpdateProduct(db, p.ID, ProductUpdate{CategoryID: &food.ID}, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, food.ID, *p.CategoryID)
	assert.Nil(t, p.SubcategoryID)
}

func TestListProductsWithStock(t *testing.T) {
	db := testutil.NewDB(t)
	drinks, err := CreateCategory(db, CategoryInput{Name: "Drinks"}, audit.Actor{})
	require.NoError(t, err)

	cola, err := CreateProduct(db, ProductInput{Name: "Cola", SearchCode: "CO", CategoryID: &drinks.ID, PurchasePrice: dec("1")}, audit.Actor{})
	require.NoError(t, err)
	_, err = CreateProduct(db, ProductInput{Name: "Apple", SearchCode: "AP", PurchasePrice: dec("1"), Description: "green fruit"}, audit.Actor{})
	require.NoError(t, err)
	testutil.Stock(t, db, cola, 7)

	page := listing.Params{Page: 1, PageSize: 10}
	all, count, err := ListProducts(db, ProductFilter{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	require.Len(t, all, 2)
	assert.Equal(t, "Apple", all[0].Name)
	assert.EqualValues(t, 0, all[0].Available)
	assert.EqualValues(t, 7, all[1].Available)

	byCat, _, err := ListProducts(db, ProductFilter{CategoryID: drinks.ID}, page)
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, "Cola", byCat[0].Name)

	byText, _, err := ListProducts(db, ProductFilter{Search: "FRUIT"}, page)
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, "Apple", byText[0].Name)

	found, err := FindByCode(db, "co")
	require.NoError(t, err)
	assert.Equal(t, cola.ID, found.ID)
}

func TestDeleteProduct(t *testing.T) {
	db := testutil.NewDB(t)
	p, err := CreateProduct(db, ProductInput{Name: "Gum", SearchCode: "G"}, audit.Actor{})
	require.NoError(t, err)

	require.NoError(t, DeleteProduct(db, p.ID, audit.Actor{}))
	_, err = GetProduct(db, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = DeleteProduct(db, p.ID, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	page := listing.Params{Page: 1, PageSize: 10}
	live, _, err := ListProducts(db, ProductFilter{}, page)
	require.NoError(t, err)
	assert.Empty(t, live)
	all, _, err := ListProducts(db, ProductFilter{IncludeDeleted: true}, page)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].DeletedAt.Valid)

	_, err = CreateProduct(db, ProductInput{Name: "Gum", SearchCode: "G"}, audit.Actor{})
	require.NoError(t, err, "deleted names and codes can be reused")
}

func TestCategoryLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	cat, err := CreateCategory(db, CategoryInput{Name: "Snacks"}, audit.Actor{})
	require.NoError(t, err)

	_, err = CreateCategory(db, CategoryInput{Name: "snacks"}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	sub, err := CreateSubcategory(db, SubcategoryInput{CategoryID: cat.ID, Name: "Salty"}, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, "Snacks", sub.Category.Name)

	_, err = CreateSubcategory(db, SubcategoryInput{CategoryID: cat.ID, Name: "SALTY"}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = CreateSubcategory(db, SubcategoryInput{CategoryID: 999, Name: "Sweet"}, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = DeleteCategory(db, cat.ID, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "category still has a subcategory")

	p, err := CreateProduct(db, ProductInput{Name: "Chips", SearchCode: "CH", SubcategoryID: &sub.ID}, audit.Actor{})
	require.NoError(t, err)
	err = DeleteSubcategory(db, sub.ID, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "subcategory still has a product")

	renamed := "Crunchy"
	sub, err = UpdateSubcategory(db, sub.ID, CategoryUpdate{Name: &renamed}, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, "Crunchy", sub.Name)

	require.NoError(t, DeleteProduct(db, p.ID, audit.Actor{}))
	require.NoError(t, DeleteSubcategory(db, sub.ID, audit.Actor{}))
	require.NoError(t, DeleteCategory(db, cat.ID, audit.Actor{}))

	cats, err := ListCategories(db)
	require.NoError(t, err)
	assert.Empty(t, cats)
}
