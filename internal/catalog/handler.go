package catalog

import (
	"strconv"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/auth"
	"tienda-backend/internal/config"
	"tienda-backend/internal/inventory"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02 15:04:05"

type ProductResponse struct {
	ID              uint            `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	MarkupPercent   decimal.Decimal `json:"markup_percent"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	SearchCode      string          `json:"search_code"`
	CategoryID      *uint           `json:"category_id"`
	CategoryName    string          `json:"category_name"`
	SubcategoryID   *uint           `json:"subcategory_id"`
	SubcategoryName string          `json:"subcategory_name"`
	Available       int64           `json:"available"`
	Deleted         bool            `json:"deleted"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

type CategoryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type SubcategoryResponse struct {
	ID           uint   `json:"id"`
	CategoryID   uint   `json:"category_id"`
	CategoryName string `json:"category_name"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CreatedAt    string `json:"created_at"`
}

func toProductResponse(p models.Product, available int64) ProductResponse {
	resp := ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		PurchasePrice: p.PurchasePrice,
		MarkupPercent: p.MarkupPercent,
		FinalPrice:    p.FinalPrice,
		SearchCode:    p.SearchCode,
		CategoryID:    p.CategoryID,
		SubcategoryID: p.SubcategoryID,
		Available:     available,
		Deleted:       p.DeletedAt.Valid,
		CreatedAt:     p.CreatedAt.Format(timeLayout),
		UpdatedAt:     p.UpdatedAt.Format(timeLayout),
	}
	if p.Category != nil {
		resp.CategoryName = p.Category.Name
	}
	if p.Subcategory != nil {
		resp.SubcategoryName = p.Subcategory.Name
	}
	return resp
}

func toCategoryResponse(cat models.Category) CategoryResponse {
	return CategoryResponse{
		ID:          cat.ID,
		Name:        cat.Name,
		Description: cat.Description,
		CreatedAt:   cat.CreatedAt.Format(timeLayout),
	}
}

func toSubcategoryResponse(sub models.Subcategory) SubcategoryResponse {
	return SubcategoryResponse{
		ID:           sub.ID,
		CategoryID:   sub.CategoryID,
		CategoryName: sub.Category.Name,
		Name:         sub.Name,
		Description:  sub.Description,
		CreatedAt:    sub.CreatedAt.Format(timeLayout),
	}
}

func badBody() error { return fiber.NewError(fiber.StatusBadRequest, "invalid request body") }

func queryID(c *fiber.Ctx, name string) (uint, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(id), nil
}

func productWithStock(db *gorm.DB, p models.Product) (ProductResponse, error) {
	n, err := inventory.Available(db, p.ID)
	if err != nil {
		return ProductResponse{}, err
	}
	return toProductResponse(p, n), nil
}

// -------------------------
// Products
// -------------------------

// POST /api/products
func CreateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		p, err := CreateProduct(db.WithContext(c.UserContext()), body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toProductResponse(p, 0))
	}
}

// GET /api/products?search=&category_id=&subcategory_id=
func ListProductsHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := listing.ParsePage(c, cfg)
		f := ProductFilter{Search: c.Query("search"), IncludeDeleted: listing.IncludeDeleted(c)}
		var err error
		if f.CategoryID, err = queryID(c, "category_id"); err != nil {
			return err
		}
		if f.SubcategoryID, err = queryID(c, "subcategory_id"); err != nil {
			return err
		}
		products, count, err := ListProducts(db.WithContext(c.UserContext()), f, page)
		if err != nil {
			return err
		}
		resp := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			resp = append(resp, toProductResponse(p.Product, p.Available))
		}
		return c.JSON(listing.NewPage(page, count, resp))
	}
}

// GET /api/products/by-code/:code
func ProductByCodeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tx := db.WithContext(c.UserContext())
		p, err := FindByCode(tx, c.Params("code"))
		if err != nil {
			return err
		}
		resp, err := productWithStock(tx, p)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// GET /api/products/:id
func GetProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		tx := db.WithContext(c.UserContext())
		p, err := GetProduct(tx, id)
		if err != nil {
			return err
		}
		resp, err := productWithStock(tx, p)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// PUT /api/products/:id
func UpdateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ProductUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		tx := db.WithContext(c.UserContext())
		p, err := UpdateProduct(tx, id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		resp, err := productWithStock(tx, p)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// DELETE /api/products/:id
func DeleteProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteProduct(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Categories
// -------------------------

// GET /api/categories
func ListCategoriesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cats, err := ListCategories(db.WithContext(c.UserContext()))
		if err != nil {
			return err
		}
		resp := make([]CategoryResponse, 0, len(cats))
		for _, cat := range cats {
			resp = append(resp, toCategoryResponse(cat))
		}
		return c.JSON(resp)
	}
}

// POST /api/categories
func CreateCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		cat, err := CreateCategory(db.WithContext(c.UserContext()), body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toCategoryResponse(cat))
	}
}

// GET /api/categories/:id
func GetCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		cat, err := GetCategory(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toCategoryResponse(cat))
	}
}

// PUT /api/categories/:id
func UpdateCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CategoryUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		cat, err := UpdateCategory(db.WithContext(c.UserContext()), id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toCategoryResponse(cat))
	}
}

// DELETE /api/categories/:id
func DeleteCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteCategory(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Subcategories
// -------------------------

// GET /api/subcategories?category_id=
func ListSubcategoriesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		catID, err := queryID(c, "category_id")
		if err != nil {
			return err
		}
		subs, err := ListSubcategories(db.WithContext(c.UserContext()), catID)
		if err != nil {
			return err
		}
		resp := make([]SubcategoryResponse, 0, len(subs))
		for _, s := range subs {
			resp = append(resp, toSubcategoryResponse(s))
		}
		return c.JSON(resp)
	}
}

// POST /api/subcategories
func CreateSubcategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SubcategoryInput
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		sub, err := CreateSubcategory(db.WithContext(c.UserContext()), body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toSubcategoryResponse(sub))
	}
}

// GET /api/subcategories/:id
func GetSubcategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		sub, err := GetSubcategory(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(toSubcategoryResponse(sub))
	}
}

// PUT /api/subcategories/:id
func UpdateSubcategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CategoryUpdate
		if err := c.BodyParser(&body); err != nil {
			return badBody()
		}
		sub, err := UpdateSubcategory(db.WithContext(c.UserContext()), id, body, auth.CurrentActor(c))
		if err != nil {
			return err
		}
		return c.JSON(toSubcategoryResponse(sub))
	}
}

// DELETE /api/subcategories/:id
func DeleteSubcategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := listing.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteSubcategory(db.WithContext(c.UserContext()), id, auth.CurrentActor(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
