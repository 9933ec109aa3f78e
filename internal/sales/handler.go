package sales

import (
	"encoding/json"
	"fmt"
	"time"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/auth"
	"tienda-backend/internal/config"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02 15:04:05"

// CreateSaleRequest keeps line_items raw so a non-list value is reported
// as a validation error instead of a parse failure.
type CreateSaleRequest struct {
	ClientID      *uint                `json:"client_id"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	LineItems     json.RawMessage      `json:"line_items"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Discount      decimal.Decimal      `json:"discount"`
	Tax           decimal.Decimal      `json:"tax"`
	Total         decimal.Decimal      `json:"total"`
	Received      decimal.Decimal      `json:"received"`
	Change        decimal.Decimal      `json:"change"`
	Notes         string               `json:"notes"`
}

func (r CreateSaleRequest) input() (SaleInput, error) {
	in := SaleInput{
		ClientID:      r.ClientID,
		PaymentMethod: r.PaymentMethod,
		Subtotal:      r.Subtotal,
		Discount:      r.Discount,
		Tax:           r.Tax,
		Total:         r.Total,
		Received:      r.Received,
		Change:        r.Change,
		Notes:         r.Notes,
	}
	if len(r.LineItems) == 0 || r.LineItems[0] != '[' {
		return in, apperr.Validation("line_items must be a non-empty list")
	}
	if err := json.Unmarshal(r.LineItems, &in.LineItems); err != nil {
		return in, apperr.Validation("invalid line_items: %v", err)
	}
	return in, nil
}

type SaleLineResponse struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type SaleResponse struct {
	ID            uint                 `json:"id"`
	Code          string               `json:"code"`
	ClientID      *uint                `json:"client_id"`
	ClientName    *string              `json:"client_name"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Discount      decimal.Decimal      `json:"discount"`
	Tax           decimal.Decimal      `json:"tax"`
	Total         decimal.Decimal      `json:"total"`
	Received      decimal.Decimal      `json:"received"`
	Change        decimal.Decimal      `json:"change"`
	Notes         string               `json:"notes"`
	NumProducts   int64                `json:"num_products"`
	Deleted       bool                 `json:"deleted"`
	CreatedByID   *uint                `json:"created_by_id"`
	CreatedAt     string               `json:"created_at"`
	Lines         []SaleLineResponse   `json:"lines"`
}

type ReturnResponse struct {
	ID         uint   `json:"id"`
	SaleID     uint   `json:"sale_id"`
	SaleCode   string `json:"sale_code"`
	SaleLineID uint   `json:"sale_line_id"`
	ProductID  uint   `json:"product_id"`
	Quantity   int64  `json:"quantity"`
	CreatedAt  string `json:"created_at"`
}

type CreateReturnResponse struct {
	Return ReturnResponse `json:"return"`
	Sale   SaleTotals     `json:"sale"`
}

func toSaleResponse(s models.Sale) SaleResponse {
	resp := SaleResponse{
		ID:            s.ID,
		Code:          s.Code,
		ClientID:      s.ClientID,
		PaymentMethod: s.PaymentMethod,
		Subtotal:      s.Subtotal,
		Discount:      s.Discount,
		Tax:           s.Tax,
		Total:         s.Total,
		Received:      s.Received,
		Change:        s.Change,
		Notes:         s.Notes,
		NumProducts:   Units(s),
		Deleted:       s.DeletedAt.Valid,
		CreatedByID:   s.CreatedByID,
		CreatedAt:     s.CreatedAt.Format(timeLayout),
		Lines:         make([]SaleLineResponse, 0, len(s.Lines)),
	}
	if s.Client != nil {
		resp.ClientName = &s.Client.Name
	}
	for _, l := range s.Lines {
		resp.Lines = append(resp.Lines, SaleLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		})
	}
	return resp
}

func toReturnResponse(r models.SaleReturn) ReturnResponse {
	return ReturnResponse{
		ID:         r.ID,
		SaleID:     r.SaleID,
		SaleCode:   r.SaleCode,
		SaleLineID: r.SaleLineID,
		ProductID:  r.ProductID,
		Quantity:   r.Quantity,
		CreatedAt:  r.CreatedAt.Format(timeLayout),
	}
}

// POST /api/sales
func CreateSaleHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		sale, err := CreateSale(db.WithContext(c.UserContext()), in, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toSaleResponse(sale))
	}
}

// GET /api/sales?search=&payment_method=&start_date=&end_date=&page=&include_deleted=true
func ListSalesHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}
		f := SaleFilter{Search: c.Query("search"), Range: rng, IncludeDeleted: listing.IncludeDeleted(c)}
		if m := models.PaymentMethod(c.Query("payment_method")); m != "" {
			if !m.Valid() {
				return apperr.Validation("unknown payment method %q", m)
			}
			f.PaymentMethod = m
		}

		out, count, err := ListSales(db.WithContext(c.UserContext()), f, page)
		if err != nil {
			return err
		}
		resp := make([]SaleResponse, 0, len(out))
		for _, s := range out {
			resp = append(resp, toSaleResponse(s))
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/sales/:id
func GetSaleHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		sale, err := GetSale(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toSaleResponse(sale))
	}
}

// DELETE /api/sales/:id
func DeleteSaleHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteSale(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/sales/next-code
func NextCodeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code, err := NextCode(db.WithContext(c.UserContext()))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"code": code})
	}
}

// GET /api/sales/summary?start_date=&end_date=
func SummaryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}
		s, err := SalesSummary(db.WithContext(c.UserContext()), rng)
		if err != nil {
			return err
		}
		return c.JSON(s)
	}
}

// GET /api/sales/report?start_date=&end_date=
func ReportHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}
		rep, err := BuildReport(db.WithContext(c.UserContext()), rng)
		if err != nil {
			return err
		}
		return c.JSON(rep)
	}
}

// GET /api/sales/report/export?start_date=&end_date=
func ExportReportHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}
		rep, err := BuildReport(db.WithContext(c.UserContext()), rng)
		if err != nil {
			return err
		}
		buf, err := ExportReport(rep)
		if err != nil {
			return err
		}

		name := fmt.Sprintf("sales-report-%s.xlsx", time.Now().Format("20060102-150405"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Send(buf.Bytes())
	}
}

// POST /api/returns
func CreateReturnHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ReturnInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := CreateReturn(db.WithContext(c.UserContext()), body, cfg.ReturnTaxRate, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(CreateReturnResponse{
			Return: toReturnResponse(res.Return),
			Sale:   res.Totals,
		})
	}
}

// GET /api/returns?search=&start_date=&end_date=&page=
func ListReturnsHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}
		out, count, err := ListReturns(db.WithContext(c.UserContext()), ReturnFilter{Search: c.Query("search"), Range: rng}, page)
		if err != nil {
			return err
		}
		resp := make([]ReturnResponse, 0, len(out))
		for _, r := range out {
			resp = append(resp, toReturnResponse(r))
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/returns/:id
func GetReturnHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := GetReturn(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toReturnResponse(r))
	}
}
