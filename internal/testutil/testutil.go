// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"tienda-backend/internal/config"
	"tienda-backend/internal/database"
	"tienda-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated private in-memory SQLite database. A single
// connection serializes transactions like row locks would on PostgreSQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func Config() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret-test-secret-test-secret",
		JWTTTLHours:   1,
		ReturnTaxRate: decimal.RequireFromString("0.16"),
		PageSize:      10,
		MaxPageSize:   100,
	}
}

func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func Product(t testing.TB, db *gorm.DB, name string, price string) models.Product {
	t.Helper()
	p := models.Product{
		Name:          name,
		PurchasePrice: Dec(price),
		MarkupPercent: decimal.Zero,
		SearchCode:    "SC-" + name,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func Supplier(t testing.TB, db *gorm.DB, name string) models.Supplier {
	t.Helper()
	s := models.Supplier{CompanyName: name, City: "Lima"}
	require.NoError(t, db.Create(&s).Error)
	return s
}

func Client(t testing.TB, db *gorm.DB, name string) models.Client {
	t.Helper()
	c := models.Client{Name: name}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// Stock makes qty units of p available through a received purchase order.
func Stock(t testing.TB, db *gorm.DB, p models.Product, qty int64) models.PurchaseOrder {
	t.Helper()
	sup := Supplier(t, db, "stock-"+uuid.NewString()[:8])
	now := time.Now()
	order := models.PurchaseOrder{
		SupplierID:  sup.ID,
		OrderNumber: "T-" + uuid.NewString()[:12],
		Status:      models.OrderStatusReceived,
		OrderedAt:   now,
		ReceivedAt:  &now,
		Lines: []models.PurchaseOrderLine{{
			SupplierID:    sup.ID,
			ProductID:     p.ID,
			ProductName:   p.Name,
			PurchasePrice: p.PurchasePrice,
			Quantity:      qty,
		}},
	}
	order.Total = p.PurchasePrice.Mul(decimal.NewFromInt(qty))
	require.NoError(t, db.Create(&order).Error)
	return order
}

func User(t testing.TB, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()
	u := models.User{Name: email, Email: email, PasswordHash: "x", Role: role, Active: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}
