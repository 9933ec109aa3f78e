package sales

import (
	"sync"
	"testing"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/inventory"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"
	"tienda-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func item(p models.Product, qty int64, unit string) LineItem {
	return LineItem{ProductID: p.ID, Quantity: qty, UnitPrice: decp(unit)}
}

func cashSale(items ...LineItem) SaleInput {
	return SaleInput{
		PaymentMethod: models.PaymentCash,
		LineItems:     items,
		Subtotal:      dec("10.00"),
		Discount:      dec("0.50"),
		Tax:           dec("1.60"),
		Total:         dec("11.10"),
		Received:      dec("20.00"),
		Change:        dec("8.90"),
	}
}

func stockOf(t *testing.T, db *gorm.DB, id uint) int64 {
	t.Helper()
	n, err := inventory.Available(db, id)
	require.NoError(t, err)
	return n
}

func TestCreateSaleDebitsStock(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 10)
	client := testutil.Client(t, db, "Marta")

	in := cashSale(item(p, 3, "2.50"))
	in.ClientID = &client.ID
	sale, err := CreateSale(db, in, audit.Actor{})
	require.NoError(t, err)

	assert.Equal(t, "V-00001", sale.Code)
	require.Len(t, sale.Lines, 1)
	assert.EqualValues(t, 3, sale.Lines[0].Quantity)
	assert.True(t, sale.Lines[0].Subtotal.Equal(dec("7.50")))
	assert.Equal(t, "cola", sale.Lines[0].Product.Name)
	require.NotNil(t, sale.Client)
	assert.Equal(t, "Marta", sale.Client.Name)

	// header money is stored as sent
	assert.True(t, sale.Total.Equal(dec("11.10")))
	assert.True(t, sale.Change.Equal(dec("8.90")))

	assert.EqualValues(t, 7, stockOf(t, db, p.ID))
}

func TestCreateSaleUsesFinalPriceWhenUnitPriceMissing(t *testing.T) {
	db := testutil.NewDB(t)
	p := models.Product{Name: "tea", PurchasePrice: dec("10.00"), MarkupPercent: dec("25"), SearchCode: "TEA"}
	require.NoError(t, db.Create(&p).Error)
	testutil.Stock(t, db, p, 2)

	sale, err := CreateSale(db, cashSale(LineItem{ProductID: p.ID, Quantity: 1}), audit.Actor{})
	require.NoError(t, err)
	assert.True(t, sale.Lines[0].UnitPrice.Equal(dec("12.50")), sale.Lines[0].UnitPrice.String())
}

func TestCreateSaleValidation(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 10)

	bad := map[string]SaleInput{
		"no lines":        cashSale(),
		"zero quantity":   cashSale(item(p, 0, "1")),
		"negative price":  cashSale(item(p, 1, "-1")),
		"missing product": cashSale(LineItem{Quantity: 1}),
	}
	in := cashSale(item(p, 1, "1"))
	in.PaymentMethod = "barter"
	bad["unknown payment"] = in
	in = cashSale(item(p, 1, "1"))
	in.Discount = dec("-1")
	bad["negative discount"] = in

	for name, in := range bad {
		_, err := CreateSale(db, in, audit.Actor{})
		assert.True(t, apperr.Is(err, apperr.KindValidation), name)
	}

	var n int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.EqualValues(t, 10, stockOf(t, db, p.ID))
}

func TestCreateSaleIsAtomic(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "a", "1.00")
	b := testutil.Product(t, db, "b", "1.00")
	testutil.Stock(t, db, a, 5)
	testutil.Stock(t, db, b, 1)

	_, err := CreateSale(db, cashSale(item(a, 2, "1"), item(b, 2, "1")), audit.Actor{})
	require.Error(t, err)
	var se *apperr.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, b.ID, se.ProductID)
	assert.EqualValues(t, 1, se.Shortfall())

	var sales, lines, lots, audits int64
	require.NoError(t, db.Unscoped().Model(&models.Sale{}).Count(&sales).Error)
	require.NoError(t, db.Unscoped().Model(&models.SaleLine{}).Count(&lines).Error)
	require.NoError(t, db.Model(&models.InventoryLot{}).Count(&lots).Error)
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&audits).Error)
	assert.Zero(t, sales)
	assert.Zero(t, lines)
	assert.Zero(t, lots)
	assert.Zero(t, audits)
	assert.EqualValues(t, 5, stockOf(t, db, a.ID))

	// the failed attempt did not burn a code
	code, err := NextCode(db)
	require.NoError(t, err)
	assert.Equal(t, "V-00001", code)
}

func TestSameProductLinesCheckedTogether(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 5)

	_, err := CreateSale(db, cashSale(item(p, 3, "1"), item(p, 3, "1")), audit.Actor{})
	var se *apperr.StockError
	require.ErrorAs(t, err, &se)
	assert.EqualValues(t, 6, se.Requested)
	assert.EqualValues(t, 5, se.Available)

	sale, err := CreateSale(db, cashSale(item(p, 3, "1"), item(p, 2, "1.5")), audit.Actor{})
	require.NoError(t, err)
	assert.Len(t, sale.Lines, 2)
	assert.Zero(t, stockOf(t, db, p.ID))
}

func TestUnknownClientOrProduct(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 5)

	ghost := uint(404)
	in := cashSale(item(p, 1, "1"))
	in.ClientID = &ghost
	_, err := CreateSale(db, in, audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = CreateSale(db, cashSale(LineItem{ProductID: 999, Quantity: 1}), audit.Actor{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSequentialCodes(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 10)

	for _, want := range []string{"V-00001", "V-00002", "V-00003"} {
		sale, err := CreateSale(db, cashSale(item(p, 1, "1")), audit.Actor{})
		require.NoError(t, err)
		assert.Equal(t, want, sale.Code)
	}
}

func TestCodeCollisionIsRetried(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 10)

	// counter lags behind a code that is already stored
	require.NoError(t, db.Create(&models.CodeSequence{Prefix: "V", LastValue: 0}).Error)
	require.NoError(t, db.Create(&models.Sale{Code: "V-00001", PaymentMethod: models.PaymentCash}).Error)

	sale, err := CreateSale(db, cashSale(item(p, 1, "1")), audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, "V-00002", sale.Code)
	assert.EqualValues(t, 9, stockOf(t, db, p.ID))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 5)

	const buyers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		codes    = map[string]bool{}
		failures int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := CreateSale(db, cashSale(item(p, 1, "1")), audit.Actor{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if apperr.Is(err, apperr.KindInsufficientStock) {
					failures++
				}
				return
			}
			codes[sale.Code] = true
		}()
	}
	wg.Wait()

	assert.Len(t, codes, 5)
	assert.Equal(t, 5, failures)
	assert.Zero(t, stockOf(t, db, p.ID))
}

func TestDeleteSaleRestocks(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 4)

	sale, err := CreateSale(db, cashSale(item(p, 4, "1")), audit.Actor{})
	require.NoError(t, err)
	require.Zero(t, stockOf(t, db, p.ID))

	require.NoError(t, DeleteSale(db, sale.ID, audit.Actor{}))
	assert.EqualValues(t, 4, stockOf(t, db, p.ID))

	_, err = GetSale(db, sale.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(DeleteSale(db, sale.ID, audit.Actor{}), apperr.KindNotFound))

	var voids int64
	require.NoError(t, db.Model(&models.InventoryLot{}).Where("kind = ?", models.MovementSaleVoid).Count(&voids).Error)
	assert.EqualValues(t, 1, voids)
}

func TestListSales(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product(t, db, "cola", "1.00")
	testutil.Stock(t, db, p, 10)
	client := testutil.Client(t, db, "Marta")

	in := cashSale(item(p, 2, "1"))
	in.ClientID = &client.ID
	_, err := CreateSale(db, in, audit.Actor{})
	require.NoError(t, err)
	card := cashSale(item(p, 1, "1"))
	card.PaymentMethod = models.PaymentCard
	_, err = CreateSale(db, card, audit.Actor{})
	require.NoError(t, err)

	page := listing.Params{Page: 1, PageSize: 10}
	out, count, err := ListSales(db, SaleFilter{Search: "marta"}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, out, 1)
	assert.EqualValues(t, 2, Units(out[0]))

	_, count, err = ListSales(db, SaleFilter{PaymentMethod: models.PaymentCard}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, count, err = ListSales(db, SaleFilter{Search: "V-0000"}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, count, err = ListSales(db, SaleFilter{Range: listing.Today()}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, DeleteSale(db, out[0].ID, audit.Actor{}))
	_, count, err = ListSales(db, SaleFilter{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	all, count, err := ListSales(db, SaleFilter{IncludeDeleted: true}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	deleted := 0
	for _, s := range all {
		if s.DeletedAt.Valid {
			deleted++
			assert.EqualValues(t, 2, Units(s), "a voided sale keeps the lines it held")
		}
	}
	assert.Equal(t, 1, deleted)
}

func TestListDeletedSaleSkipsReturnedLines(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "cola", "1.00")
	b := testutil.Product(t, db, "chips", "1.00")
	testutil.Stock(t, db, a, 5)
	testutil.Stock(t, db, b, 5)

	sale, err := CreateSale(db, cashSale(item(a, 1, "1"), item(b, 2, "1")), audit.Actor{})
	require.NoError(t, err)
	_, err = CreateReturn(db, ReturnInput{SaleID: sale.ID, ProductID: a.ID, Quantity: 1}, dec("0.16"), audit.Actor{})
	require.NoError(t, err)
	require.NoError(t, DeleteSale(db, sale.ID, audit.Actor{}))

	out, _, err := ListSales(db, SaleFilter{IncludeDeleted: true}, listing.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Lines, 1)
	assert.Equal(t, b.ID, out[0].Lines[0].ProductID)
	assert.EqualValues(t, 2, Units(out[0]))
	assert.EqualValues(t, 5, stockOf(t, db, a.ID))
	assert.EqualValues(t, 5, stockOf(t, db, b.ID))
}
