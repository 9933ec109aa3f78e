package sales

import (
	"sort"

	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const topProductsLimit = 10

type Summary struct {
	From         string          `json:"start_date"`
	To           string          `json:"end_date"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	UnitsSold    int64           `json:"units_sold"`
	Transactions int64           `json:"transactions"`
}

type MethodTotal struct {
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Total         decimal.Decimal      `json:"total"`
	Count         int64                `json:"count"`
}

type TopProduct struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Units     int64  `json:"units"`
}

type ReportLine struct {
	LineID    uint            `json:"line_id"`
	ProductID uint            `json:"product_id"`
	Product   string          `json:"product"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type ReportSale struct {
	ID            uint                 `json:"id"`
	Code          string               `json:"code"`
	Client        string               `json:"client"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Discount      decimal.Decimal      `json:"discount"`
	Tax           decimal.Decimal      `json:"tax"`
	Total         decimal.Decimal      `json:"total"`
	Date          string               `json:"date"`
	CreatedBy     string               `json:"created_by"`
	Lines         []ReportLine         `json:"lines"`
}

type Report struct {
	Summary        Summary         `json:"summary"`
	TotalDiscounts decimal.Decimal `json:"total_discounts"`
	TotalTaxes     decimal.Decimal `json:"total_taxes"`
	ByMethod       []MethodTotal   `json:"by_payment_method"`
	TopProducts    []TopProduct    `json:"top_products"`
	Sales          []ReportSale    `json:"sales"`
}

const (
	walkInClient = "Walk-in client"
	unassigned   = "Unassigned"
)

// rangeOrToday falls back to the current day when no bound is set.
func rangeOrToday(r listing.Range) listing.Range {
	if r.From == nil && r.To == nil {
		return listing.Today()
	}
	return r
}

func describe(r listing.Range) (from, to string) {
	if r.From != nil {
		from = r.From.Format(listing.DateLayout)
	}
	if r.To != nil {
		to = r.To.AddDate(0, 0, -1).Format(listing.DateLayout)
	}
	return from, to
}

func salesIn(db *gorm.DB, r listing.Range) ([]models.Sale, error) {
	var out []models.Sale
	err := preloadSale(r.Apply(db.Model(&models.Sale{}), "sales.created_at")).
		Order("sales.created_at DESC, sales.id DESC").Find(&out).Error
	return out, err
}

func summarize(r listing.Range, sales []models.Sale) Summary {
	s := Summary{TotalSales: decimal.Zero, Transactions: int64(len(sales))}
	s.From, s.To = describe(r)
	for _, sale := range sales {
		s.TotalSales = s.TotalSales.Add(sale.Total)
		s.UnitsSold += Units(sale)
	}
	s.TotalSales = s.TotalSales.Round(2)
	return s
}

// SalesSummary totals the sales in r, today by default.
func SalesSummary(db *gorm.DB, r listing.Range) (Summary, error) {
	r = rangeOrToday(r)
	sales, err := salesIn(db, r)
	if err != nil {
		return Summary{}, err
	}
	return summarize(r, sales), nil
}

// BuildReport is the detailed sales report behind the JSON and XLSX
// endpoints.
func BuildReport(db *gorm.DB, r listing.Range) (Report, error) {
	r = rangeOrToday(r)
	sales, err := salesIn(db, r)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Summary:        summarize(r, sales),
		TotalDiscounts: decimal.Zero,
		TotalTaxes:     decimal.Zero,
		ByMethod:       []MethodTotal{},
		TopProducts:    []TopProduct{},
		Sales:          make([]ReportSale, 0, len(sales)),
	}

	methods := map[models.PaymentMethod]*MethodTotal{}
	top := map[uint]*TopProduct{}
	for _, s := range sales {
		rep.TotalDiscounts = rep.TotalDiscounts.Add(s.Discount)
		rep.TotalTaxes = rep.TotalTaxes.Add(s.Tax)

		m, ok := methods[s.PaymentMethod]
		if !ok {
			m = &MethodTotal{PaymentMethod: s.PaymentMethod, Total: decimal.Zero}
			methods[s.PaymentMethod] = m
		}
		m.Total = m.Total.Add(s.Total)
		m.Count++

		rs := ReportSale{
			ID:            s.ID,
			Code:          s.Code,
			Client:        walkInClient,
			PaymentMethod: s.PaymentMethod,
			Subtotal:      s.Subtotal,
			Discount:      s.Discount,
			Tax:           s.Tax,
			Total:         s.Total,
			Date:          s.CreatedAt.Format("2006-01-02 15:04:05"),
			CreatedBy:     unassigned,
			Lines:         make([]ReportLine, 0, len(s.Lines)),
		}
		if s.Client != nil {
			rs.Client = s.Client.Name
		}
		if s.CreatedBy != nil {
			rs.CreatedBy = s.CreatedBy.Name
		}
		for _, l := range s.Lines {
			rs.Lines = append(rs.Lines, ReportLine{
				LineID:    l.ID,
				ProductID: l.ProductID,
				Product:   l.Product.Name,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Subtotal:  l.Subtotal,
			})
			tp, ok := top[l.ProductID]
			if !ok {
				tp = &TopProduct{ProductID: l.ProductID, Name: l.Product.Name}
				top[l.ProductID] = tp
			}
			tp.Units += l.Quantity
		}
		rep.Sales = append(rep.Sales, rs)
	}
	rep.TotalDiscounts = rep.TotalDiscounts.Round(2)
	rep.TotalTaxes = rep.TotalTaxes.Round(2)

	for _, m := range methods {
		rep.ByMethod = append(rep.ByMethod, *m)
	}
	sort.Slice(rep.ByMethod, func(i, j int) bool {
		return rep.ByMethod[i].PaymentMethod < rep.ByMethod[j].PaymentMethod
	})

	for _, tp := range top {
		rep.TopProducts = append(rep.TopProducts, *tp)
	}
	sort.Slice(rep.TopProducts, func(i, j int) bool {
		a, b := rep.TopProducts[i], rep.TopProducts[j]
		if a.Units != b.Units {
			return a.Units > b.Units
		}
		return a.ProductID < b.ProductID
	})
	if len(rep.TopProducts) > topProductsLimit {
		rep.TopProducts = rep.TopProducts[:topProductsLimit]
	}
	return rep, nil
}
