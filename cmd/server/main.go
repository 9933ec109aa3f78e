package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"tienda-backend/internal/config"
	"tienda-backend/internal/database"
	"tienda-backend/internal/logger"
	"tienda-backend/internal/server"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config: ", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("logger: ", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.UsesDefaultDSN() {
		zl.Warn("DATABASE_DSN not set, using the local development database")
	}
	if err := database.Init(cfg, zl); err != nil {
		zl.Fatal("database init failed", zap.Error(err))
	}

	app := server.New(cfg, database.DB, zl)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zl.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			zl.Error("shutdown", zap.Error(err))
		}
	}()

	zl.Info("server listening", zap.String("port", cfg.HTTPPort))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		zl.Fatal("listen", zap.Error(err))
	}
}
