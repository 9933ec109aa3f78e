package inventory

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"tienda-backend/internal/listing"
	"tienda-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockListPaging(t *testing.T) {
	db := testutil.NewDB(t)
	for _, name := range []string{"apple", "beans", "cola"} {
		p := testutil.Product(t, db, name, "1.00")
		testutil.Stock(t, db, p, 3)
	}
	testutil.Product(t, db, "dates", "1.00")

	app := fiber.New()
	app.Get("/inventory", StockListHandler(db, testutil.Config()))

	cases := []struct {
		name  string
		url   string
		count int64
		names []string
	}{
		{"first page", "/inventory?page_size=2", 4, []string{"apple", "beans"}},
		{"second page", "/inventory?page=2&page_size=2", 4, []string{"cola", "dates"}},
		{"in stock only", "/inventory?in_stock=true", 3, []string{"apple", "beans", "cola"}},
		{"page past the end", "/inventory?page=50", 4, nil},
		{"huge page", "/inventory?page=922337203685477582", 4, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tc.url, nil))
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			var page listing.Page[StockRow]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
			assert.Equal(t, tc.count, page.Count)
			got := make([]string, 0, len(page.Results))
			for _, r := range page.Results {
				got = append(got, r.Name)
			}
			if tc.names == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.names, got)
			}
		})
	}
}
