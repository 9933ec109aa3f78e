// Package server assembles the HTTP application: middleware, error
// mapping and every route.
package server

import (
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/auth"
	"tienda-backend/internal/catalog"
	"tienda-backend/internal/clients"
	"tienda-backend/internal/combos"
	"tienda-backend/internal/config"
	"tienda-backend/internal/inventory"
	"tienda-backend/internal/logger"
	"tienda-backend/internal/purchasing"
	"tienda-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorHandler renders every error returned by a handler. Internal errors
// are logged and answered with a generic message.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.Status(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("unexpected error",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Any("request_id", c.Locals(logger.CtxRequestIDKey)),
			)
		}
		return c.Status(status).JSON(apperr.Body(err))
	}
}

func New(cfg *config.Config, db *gorm.DB, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(log),
	})

	origins := strings.Split(cfg.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(recover.New())
	app.Use(logger.Middleware(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(origins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + logger.RequestIDHeader,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		ExposeHeaders: logger.RequestIDHeader,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/bootstrap", auth.BootstrapAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler(db))
	protected.Post("/users", auth.Require(auth.PermUsersManage), auth.CreateUserHandler(db))
	protected.Get("/audit-logs", auth.Require(auth.PermAuditRead), audit.ListAuditLogsHandler(db, cfg))

	registerCatalog(protected, db, cfg)
	registerClients(protected, db, cfg)
	registerInventory(protected, db, cfg)
	registerPurchasing(protected, db, cfg)
	registerSales(protected, db, cfg)
	registerCombos(protected, db, cfg)

	return app
}

func registerCatalog(r fiber.Router, db *gorm.DB, cfg *config.Config) {
	read := auth.Require(auth.PermCatalogRead)
	write := auth.Require(auth.PermCatalogWrite)

	r.Get("/products", read, catalog.ListProductsHandler(db, cfg))
	r.Get("/products/by-code/:code", read, catalog.ProductByCodeHandler(db))
	r.Get("/products/:id", read, catalog.GetProductHandler(db))
	r.Post("/products", write, catalog.CreateProductHandler(db))
	r.Put("/products/:id", write, catalog.UpdateProductHandler(db))
	r.Delete("/products/:id", write, catalog.DeleteProductHandler(db))

	r.Get("/categories", read, catalog.ListCategoriesHandler(db))
	r.Get("/categories/:id", read, catalog.GetCategoryHandler(db))
	r.Post("/categories", write, catalog.CreateCategoryHandler(db))
	r.Put("/categories/:id", write, catalog.UpdateCategoryHandler(db))
	r.Delete("/categories/:id", write, catalog.DeleteCategoryHandler(db))

	r.Get("/subcategories", read, catalog.ListSubcategoriesHandler(db))
	r.Get("/subcategories/:id", read, catalog.GetSubcategoryHandler(db))
	r.Post("/subcategories", write, catalog.CreateSubcategoryHandler(db))
	r.Put("/subcategories/:id", write, catalog.UpdateSubcategoryHandler(db))
	r.Delete("/subcategories/:id", write, catalog.DeleteSubcategoryHandler(db))
}

func registerClients(r fiber.Router, db *gorm.DB, cfg *config.Config) {
	read := auth.Require(auth.PermCatalogRead)
	write := auth.Require(auth.PermClientsWrite)

	r.Get("/clients", read, clients.ListClientsHandler(db, cfg))
	r.Get("/clients/:id", read, clients.GetClientHandler(db))
	r.Post("/clients", write, clients.CreateClientHandler(db))
	r.Put("/clients/:id", write, clients.UpdateClientHandler(db))
	r.Delete("/clients/:id", write, clients.DeleteClientHandler(db))
}

func registerInventory(r fiber.Router, db *gorm.DB, cfg *config.Config) {
	read := auth.Require(auth.PermInventoryRead)

	r.Get("/inventory", read, inventory.StockListHandler(db, cfg))
	r.Get("/inventory/:product_id/available", read, inventory.AvailableHandler(db))
	r.Get("/inventory/:product_id/movements", read, inventory.MovementsHandler(db, cfg))
}

func registerPurchasing(r fiber.Router, db *gorm.DB, cfg *config.Config) {
	read := auth.Require(auth.PermPurchasingRead)
	write := auth.Require(auth.PermPurchasingWrite)

	// static segments before :id
	r.Get("/purchase-orders/next-number", read, purchasing.NextOrderNumberHandler(db))
	r.Get("/purchase-orders", read, purchasing.ListOrdersHandler(db, cfg))
	r.Post("/purchase-orders", write, purchasing.CreateOrderHandler(db))
	r.Get("/purchase-orders/:id", read, purchasing.GetOrderHandler(db))
	r.Put("/purchase-orders/:id", write, purchasing.UpdateOrderHandler(db))
	r.Delete("/purchase-orders/:id", write, purchasing.DeleteOrderHandler(db))
	r.Post("/purchase-orders/:id/receive", write, purchasing.ReceiveOrderHandler(db))
	r.Get("/purchase-orders/:id/lines", read, purchasing.ListLinesHandler(db))
	r.Post("/purchase-orders/:id/lines", write, purchasing.AddLineHandler(db))
	r.Put("/purchase-orders/:id/lines/:line_id", write, purchasing.UpdateLineHandler(db))
	r.Delete("/purchase-orders/:id/lines/:line_id", write, purchasing.DeleteLineHandler(db))

	r.Get("/suppliers/with-orders", read, purchasing.SuppliersWithOrdersHandler(db))
	r.Get("/suppliers", read, purchasing.ListSuppliersHandler(db, cfg))
	r.Post("/suppliers", write, purchasing.CreateSupplierHandler(db))
	r.Get("/suppliers/:id", read, purchasing.GetSupplierHandler(db))
	r.Put("/suppliers/:id", write, purchasing.UpdateSupplierHandler(db))
	r.Delete("/suppliers/:id", write, purchasing.DeleteSupplierHandler(db))
}

func registerSales(r fiber.Router, db *gorm.DB, cfg *config.Config) {
	read := auth.Require(auth.PermSalesRead)
	write := auth.Require(auth.PermSalesWrite)
	reports := auth.Require(auth.PermReportsRead)

	r.Get("/sales/next-code", read, sales.NextCodeHandler(db))
	r.Get("/sales/summary", reports, sales.SummaryHandler(db))
	r.Get("/sales/report", reports, sales.ReportHandler(db))
	r.Get("/sales/report/export", reports, sales.ExportReportHandler(db))
	r.Get("/sales", read, sales.ListSalesHandler(db, cfg))
	r.Post("/sales", write, sales.CreateSaleHandler(db))
	r.Get("/sales/:id", read, sales.GetSaleHandler(db))
	r.Delete("/sales/:id", write, sales.DeleteSaleHandler(db))

	r.Post("/returns", auth.Require(auth.PermReturnsWrite), sales.CreateReturnHandler(db, cfg))
	r.Get("/returns", read, sales.ListReturnsHandler(db, cfg))
	r.Get("/returns/:id", read, sales.GetReturnHandler(db))
}

func registerCombos(r fiber.Router, db *gorm.DB, cfg *config.Config) {
	read := auth.Require(auth.PermCatalogRead)
	write := auth.Require(auth.PermCatalogWrite)

	r.Get("/combos/active", read, combos.ActiveCombosHandler(db))
	r.Get("/combos", read, combos.ListCombosHandler(db, cfg))
	r.Post("/combos", write, combos.CreateComboHandler(db))
	r.Get("/combos/:id", read, combos.GetComboHandler(db))
	r.Put("/combos/:id", write, combos.UpdateComboHandler(db))
	r.Delete("/combos/:id", write, combos.DeleteComboHandler(db))
	r.Post("/combos/:id/products", write, combos.AddProductHandler(db))
	r.Put("/combos/:id/products/:line_id", write, combos.UpdateProductHandler(db))
	r.Delete("/combos/:id/products/:line_id", write, combos.RemoveProductHandler(db))
}
