package inventory

import (
	"strconv"
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/config"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AvailableResponse struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int64  `json:"available"`
}

type MovementResponse struct {
	ID            uint                `json:"id"`
	Kind          models.MovementKind `json:"kind"`
	Quantity      int64               `json:"quantity"`
	ReferenceType string              `json:"reference_type"`
	ReferenceID   uint                `json:"reference_id"`
	ReceivedAt    string              `json:"received_at"`
	CreatedByID   *uint               `json:"created_by_id"`
}

type StockRow struct {
	ProductID  uint            `json:"product_id"`
	Name       string          `json:"name"`
	SearchCode string          `json:"search_code"`
	FinalPrice decimal.Decimal `json:"final_price"`
	Available  int64           `json:"available"`
}

func loadProduct(db *gorm.DB, c *fiber.Ctx) (models.Product, error) {
	var p models.Product
	id, err := listing.ParamID(c, "product_id")
	if err != nil {
		return p, err
	}
	if err := db.First(&p, id).Error; err != nil {
		return p, apperr.FromDB(err, "product")
	}
	return p, nil
}

// GET /api/inventory/:product_id/available
func AvailableHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbc := db.WithContext(c.UserContext())
		p, err := loadProduct(dbc, c)
		if err != nil {
			return err
		}
		n, err := Available(dbc, p.ID)
		if err != nil {
			return err
		}
		return c.JSON(AvailableResponse{ProductID: p.ID, ProductName: p.Name, Available: n})
	}
}

// GET /api/inventory/:product_id/movements?kind=sale&page=1
func MovementsHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbc := db.WithContext(c.UserContext())
		p, err := loadProduct(dbc, c)
		if err != nil {
			return err
		}
		page := listing.ParsePage(c, cfg)
		rng, err := listing.ParseDateRange(c)
		if err != nil {
			return err
		}

		q := dbc.Model(&models.InventoryLot{}).Where("product_id = ?", p.ID)
		if kind := c.Query("kind"); kind != "" {
			q = q.Where("kind = ?", kind)
		}
		q = rng.Apply(q, "received_at")

		var count int64
		if err := q.Count(&count).Error; err != nil {
			return err
		}
		var lots []models.InventoryLot
		if err := page.Apply(q.Order("received_at DESC, id DESC")).Find(&lots).Error; err != nil {
			return err
		}

		resp := make([]MovementResponse, 0, len(lots))
		for _, l := range lots {
			resp = append(resp, MovementResponse{
				ID:            l.ID,
				Kind:          l.Kind,
				Quantity:      l.Quantity,
				ReferenceType: l.ReferenceType,
				ReferenceID:   l.ReferenceID,
				ReceivedAt:    l.ReceivedAt.Format("2006-01-02 15:04:05"),
				CreatedByID:   l.CreatedByID,
			})
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/inventory?search=abc&category_id=1&in_stock=true
func StockListHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbc := db.WithContext(c.UserContext())
		page := listing.ParsePage(c, cfg)

		q := dbc.Model(&models.Product{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(search_code) LIKE ?", like, like)
		}
		if v := c.Query("category_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return apperr.Validation("invalid category_id")
			}
			q = q.Where("category_id = ?", id)
		}

		var products []models.Product
		if err := q.Order("name").Find(&products).Error; err != nil {
			return err
		}
		ids := make([]uint, 0, len(products))
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		stock, err := AvailableMany(dbc, ids)
		if err != nil {
			return err
		}

		// in_stock filters on a derived value, so paging happens in memory
		inStock := c.QueryBool("in_stock", false)
		rows := make([]StockRow, 0, len(products))
		for _, p := range products {
			if inStock && stock[p.ID] == 0 {
				continue
			}
			rows = append(rows, StockRow{
				ProductID:  p.ID,
				Name:       p.Name,
				SearchCode: p.SearchCode,
				FinalPrice: p.FinalPrice,
				Available:  stock[p.ID],
			})
		}

		count := int64(len(rows))
		from, to := page.Window(len(rows))
		return c.JSON(listing.NewPage(page, count, rows[from:to]))
	}
}
