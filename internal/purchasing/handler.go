package purchasing

import (
	"strconv"

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

type LineResponse struct {
	ID            uint            `json:"id"`
	ProductID     uint            `json:"product_id"`
	ProductName   string          `json:"product_name"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Quantity      int64           `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Notes         string          `json:"notes"`
}

type OrderResponse struct {
	ID           uint               `json:"id"`
	OrderNumber  string             `json:"order_number"`
	SupplierID   uint               `json:"supplier_id"`
	SupplierName string             `json:"supplier_name"`
	Status       models.OrderStatus `json:"status"`
	Deleted      bool               `json:"deleted"`
	Total        decimal.Decimal    `json:"total"`
	Notes        string             `json:"notes"`
	OrderedAt    string             `json:"ordered_at"`
	ReceivedAt   *string            `json:"received_at"`
	CreatedAt    string             `json:"created_at"`
	Lines        []LineResponse     `json:"lines"`
}

type SupplierResponse struct {
	ID          uint   `json:"id"`
	CompanyName string `json:"company_name"`
	City        string `json:"city"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toLineResponse(l models.PurchaseOrderLine) LineResponse {
	return LineResponse{
		ID:            l.ID,
		ProductID:     l.ProductID,
		ProductName:   l.ProductName,
		PurchasePrice: l.PurchasePrice,
		Quantity:      l.Quantity,
		Subtotal:      l.Subtotal,
		Notes:         l.Notes,
	}
}

func toOrderResponse(o models.PurchaseOrder) OrderResponse {
	resp := OrderResponse{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		SupplierID:   o.SupplierID,
		SupplierName: o.Supplier.CompanyName,
		Status:       o.Status,
		Deleted:      o.DeletedAt.Valid,
		Total:        o.Total,
		Notes:        o.Notes,
		OrderedAt:    o.OrderedAt.Format(timeLayout),
		CreatedAt:    o.CreatedAt.Format(timeLayout),
		Lines:        make([]LineResponse, 0, len(o.Lines)),
	}
	if o.ReceivedAt != nil {
		s := o.ReceivedAt.Format(timeLayout)
		resp.ReceivedAt = &s
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, toLineResponse(l))
	}
	return resp
}

func toSupplierResponse(s models.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:          s.ID,
		CompanyName: s.CompanyName,
		City:        s.City,
		Description: s.Description,
		CreatedAt:   s.CreatedAt.Format(timeLayout),
		UpdatedAt:   s.UpdatedAt.Format(timeLayout),
	}
}

func badBody() error { return fiber.NewError(fiber.StatusBadRequest, "invalid request body") }

// -------------------------
// Purchase orders
// -------------------------

// POST /api/purchase-orders
func CreateOrderHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body OrderInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		order, err := CreateOrder(db.WithContext(c.UserContext()), body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toOrderResponse(order))
	}
}

// GET /api/purchase-orders?search=&status=paid&supplier_id=1&start_date=&end_date=
func ListOrdersHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}
		f := OrderFilter{Search: c.Query("search"), Range: rng, IncludeDeleted: listing.IncludeDeleted(c)}
		if s := models.OrderStatus(c.Query("status")); s != "" {
			if !ValidStatus(s) {
				return apperr.Validation("invalid status %q", s)
			}
			f.Status = s
		}
		if v := c.Query("supplier_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return apperr.Validation("invalid supplier_id")
			}
			f.SupplierID = uint(id)
		}

		orders, count, err := ListOrders(db.WithContext(c.UserContext()), f, page)
		if err != nil {
			return err
		}
		resp := make([]OrderResponse, 0, len(orders))
		for _, o := range orders {
			resp = append(resp, toOrderResponse(o))
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/purchase-orders/:id
func GetOrderHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		order, err := GetOrder(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toOrderResponse(order))
	}
}

// PUT /api/purchase-orders/:id
func UpdateOrderHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body OrderUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		order, err := UpdateOrder(db.WithContext(c.UserContext()), id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toOrderResponse(order))
	}
}

// POST /api/purchase-orders/:id/receive
func ReceiveOrderHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		order, err := ReceiveOrder(db.WithContext(c.UserContext()), id, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toOrderResponse(order))
	}
}

// DELETE /api/purchase-orders/:id
func DeleteOrderHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteOrder(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/purchase-orders/next-number
func NextOrderNumberHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := NextOrderNumber(db.WithContext(c.UserContext()))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"order_number": n})
	}
}

// -------------------------
// Order lines
// -------------------------

// GET /api/purchase-orders/:id/lines
func ListLinesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		lines, err := ListLines(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		resp := make([]LineResponse, 0, len(lines))
		for _, l := range lines {
			resp = append(resp, toLineResponse(l))
		}
		return c.JSON(resp)
	}
}

// POST /api/purchase-orders/:id/lines
func AddLineHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body LineInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		line, err := AddLine(db.WithContext(c.UserContext()), id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toLineResponse(line))
	}
}

// PUT /api/purchase-orders/:id/lines/:line_id
func UpdateLineHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		lineID, err := listing.ParamID(c, "line_id")
		if err != nil {
			return err
		}
		var body LineUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		line, err := UpdateLine(db.WithContext(c.UserContext()), id, lineID, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toLineResponse(line))
	}
}

// DELETE /api/purchase-orders/:id/lines/:line_id
func DeleteLineHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		lineID, err := listing.ParamID(c, "line_id")
		if err != nil {
			return err
		}
		if err := DeleteLine(db.WithContext(c.UserContext()), id, lineID, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Suppliers
// -------------------------

// POST /api/suppliers
func CreateSupplierHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SupplierInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		s, err := CreateSupplier(db.WithContext(c.UserContext()), body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toSupplierResponse(s))
	}
}

// GET /api/suppliers?search=&start_date=&end_date=
func ListSuppliersHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}
		suppliers, count, err := ListSuppliers(db.WithContext(c.UserContext()), c.Query("search"), rng, page)
		if err != nil {
			return err
		}
		resp := make([]SupplierResponse, 0, len(suppliers))
		for _, s := range suppliers {
			resp = append(resp, toSupplierResponse(s))
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/suppliers/with-orders
func SuppliersWithOrdersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := SuppliersWithOrders(db.WithContext(c.UserContext()))
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// GET /api/suppliers/:id
func GetSupplierHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		s, err := GetSupplier(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toSupplierResponse(s))
	}
}

// PUT /api/suppliers/:id
func UpdateSupplierHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body SupplierUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		s, err := UpdateSupplier(db.WithContext(c.UserContext()), id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toSupplierResponse(s))
	}
}

// DELETE /api/suppliers/:id
func DeleteSupplierHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteSupplier(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
