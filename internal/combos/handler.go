package combos

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

type MemberResponse struct {
	ID           uint            `json:"id"`
	ProductID    uint            `json:"product_id"`
	ProductName  string          `json:"product_name"`
	SpecialPrice decimal.Decimal `json:"special_price"`
	Quantity     int64           `json:"quantity"`
}

type ComboResponse struct {
	ID         uint             `json:"id"`
	Name       string           `json:"name"`
	Active     bool             `json:"active"`
	TotalPrice decimal.Decimal  `json:"total_price"`
	CreatedAt  string           `json:"created_at"`
	Products   []MemberResponse `json:"products"`
}

func toMemberResponse(l models.ComboLine) MemberResponse {
	return MemberResponse{
		ID:           l.ID,
		ProductID:    l.ProductID,
		ProductName:  l.Product.Name,
		SpecialPrice: l.SpecialPrice,
		Quantity:     l.Quantity,
	}
}

func toComboResponse(c models.Combo) ComboResponse {
	resp := ComboResponse{
		ID:         c.ID,
		Name:       c.Name,
		Active:     c.Active,
		TotalPrice: c.TotalPrice(),
		CreatedAt:  c.CreatedAt.Format(timeLayout),
		Products:   make([]MemberResponse, 0, len(c.Lines)),
	}
	for _, l := range c.Lines {
		resp.Products = append(resp.Products, toMemberResponse(l))
	}
	return resp
}

func badBody() error { return fiber.NewError(fiber.StatusBadRequest, "invalid request body") }

// POST /api/combos
func CreateComboHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ComboInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		combo, err := CreateCombo(db.WithContext(c.UserContext()), body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toComboResponse(combo))
	}
}

// GET /api/combos?search=&active=true
func ListCombosHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		var active *bool
		if v := c.Query("active"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return apperr.Validation("invalid active flag")
			}
			active = &b
		}
		combos, count, err := ListCombos(db.WithContext(c.UserContext()), c.Query("search"), active, page)
		if err != nil {
			return err
		}
		resp := make([]ComboResponse, 0, len(combos))
		for _, cb := range combos {
			resp = append(resp, toComboResponse(cb))
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/combos/active
func ActiveCombosHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := ActiveCombos(db.WithContext(c.UserContext()))
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// GET /api/combos/:id
func GetComboHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		combo, err := GetCombo(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toComboResponse(combo))
	}
}

// PUT /api/combos/:id
func UpdateComboHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ComboUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		combo, err := UpdateCombo(db.WithContext(c.UserContext()), id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toComboResponse(combo))
	}
}

// DELETE /api/combos/:id
func DeleteComboHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteCombo(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/combos/:id/products
func AddProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body MemberInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		line, err := AddProduct(db.WithContext(c.UserContext()), id, body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toMemberResponse(line))
	}
}

// PUT /api/combos/:id/products/:line_id
func UpdateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		lineID, err := listing.ParamID(c, "line_id")
		if err != nil {
			return err
		}
		var body MemberUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		line, err := UpdateProduct(db.WithContext(c.UserContext()), id, lineID, body)
		if err != nil {
			return err
		}
		return c.JSON(toMemberResponse(line))
	}
}

// DELETE /api/combos/:id/products/:line_id
func RemoveProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		lineID, err := listing.ParamID(c, "line_id")
		if err != nil {
			return err
		}
		if err := RemoveProduct(db.WithContext(c.UserContext()), id, lineID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
