package database

import (
	"fmt"

	"tienda-backend/internal/config"
	"tienda-backend/internal/logger"
	"tienda-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Open connects to PostgreSQL. Unique violations surface as
// gorm.ErrDuplicatedKey.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// Init opens and migrates the database and stores it in DB.
func Init(cfg *config.Config, log *zap.Logger) error {
	db, err := Open(cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	DB = db
	log.Info("database ready")
	return nil
}
