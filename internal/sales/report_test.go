package sales

import (
	"testing"

	"tienda-backend/internal/audit"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"
	"tienda-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSummaryAndReport(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Product(t, db, "cola", "1.00")
	b := testutil.Product(t, db, "chips", "1.00")
	testutil.Stock(t, db, a, 20)
	testutil.Stock(t, db, b, 20)

	_, err := CreateSale(db, cashSale(item(a, 5, "1"), item(b, 1, "1")), audit.Actor{})
	require.NoError(t, err)
	card := cashSale(item(b, 2, "1"))
	card.PaymentMethod = models.PaymentCard
	_, err = CreateSale(db, card, audit.Actor{})
	require.NoError(t, err)

	sum, err := SalesSummary(db, listing.Range{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.Transactions)
	assert.EqualValues(t, 8, sum.UnitsSold)
	assert.True(t, sum.TotalSales.Equal(dec("22.20")), sum.TotalSales.String())
	assert.NotEmpty(t, sum.From)
	assert.Equal(t, sum.From, sum.To)

	rep, err := BuildReport(db, listing.Range{})
	require.NoError(t, err)
	assert.True(t, rep.TotalDiscounts.Equal(dec("1.00")))
	assert.True(t, rep.TotalTaxes.Equal(dec("3.20")))
	require.Len(t, rep.ByMethod, 2)
	assert.Equal(t, models.PaymentCard, rep.ByMethod[0].PaymentMethod)
	require.Len(t, rep.TopProducts, 2)
	assert.Equal(t, a.ID, rep.TopProducts[0].ProductID)
	assert.EqualValues(t, 5, rep.TopProducts[0].Units)
	require.Len(t, rep.Sales, 2)
	assert.Equal(t, walkInClient, rep.Sales[0].Client)

	buf, err := ExportReport(rep)
	require.NoError(t, err)
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetSummary, sheetSales, sheetLines}, f.GetSheetList())
	rows, err := f.GetRows(sheetLines)
	require.NoError(t, err)
	assert.Len(t, rows, 4) // header + 3 lines
	code, err := f.GetCellValue(sheetSales, "A2")
	require.NoError(t, err)
	assert.Equal(t, "V-00002", code)
}

func TestReportEmptyRange(t *testing.T) {
	db := testutil.NewDB(t)
	r, err := listing.ParseRange("2020-01-01", "2020-01-31")
	require.NoError(t, err)

	rep, err := BuildReport(db, r)
	require.NoError(t, err)
	assert.Zero(t, rep.Summary.Transactions)
	assert.Equal(t, "2020-01-01", rep.Summary.From)
	assert.Equal(t, "2020-01-31", rep.Summary.To)
	assert.NotNil(t, rep.Sales)

	_, err = ExportReport(rep)
	require.NoError(t, err)
}
