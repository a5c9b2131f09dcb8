package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"election-ledger/internal/api"
	"election-ledger/internal/database"
	"election-ledger/pkg/config"
	"election-ledger/pkg/logger"
)

func main() {
	// Missing .env is fine; config falls back to file and environment
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("configs/server.yaml")
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	appLog := logger.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	defer appLog.Close()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		appLog.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		appLog.Fatal("Failed to run migrations: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	services := api.NewServices(db, appLog, cfg)
	api.SetupRoutes(router, services)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		appLog.Info("Election ledger server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Graceful shutdown failed: %v", err)
	}
	appLog.Info("Server stopped")
}
