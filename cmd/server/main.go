package main

//go:generate swag init -g cmd/server/main.go -d ../../ -o ../../docs

import (
	"context"
	"errors"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HugPhiluu/PhilCard/internal/config"
	"github.com/HugPhiluu/PhilCard/internal/db"
	"github.com/HugPhiluu/PhilCard/internal/handler"
	transport "github.com/HugPhiluu/PhilCard/internal/http"
	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/network"
	"github.com/HugPhiluu/PhilCard/internal/repository"
	"github.com/HugPhiluu/PhilCard/internal/scheduler"
	"github.com/HugPhiluu/PhilCard/internal/service"
	"github.com/HugPhiluu/PhilCard/internal/snowflake"
	"github.com/HugPhiluu/PhilCard/web"
)

// @title PhilCard API
// @version 1.0
// @description Personal link page with an admin API.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.
func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	if err := snowflake.Init(cfg.NodeID); err != nil {
		log.Fatalf("init snowflake: %v", err)
	}

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer dbConn.Close()

	linkRepo := repository.NewLinkRepository(dbConn)
	settingsRepo := repository.NewSettingsRepository(dbConn)

	clientFactory := network.NewClientFactory(network.StaticProxy(cfg.ProxyURL))
	uploadStore := service.NewFileStore(cfg.UploadDir)
	iconStore := service.NewFileStore(cfg.IconDir)

	authService := service.NewAuthService(settingsRepo, cfg.TokenTTL)
	configService := service.NewConfigService(settingsRepo, uploadStore)
	iconService := service.NewIconService(iconStore, linkRepo, clientFactory)
	linkService := service.NewLinkService(linkRepo, iconService)
	previewService := service.NewPreviewService(clientFactory)
	uploadService := service.NewUploadService(uploadStore, configService, linkRepo, cfg.MaxUploadSize)
	backupService := service.NewBackupService(linkRepo, configService, authService, uploadStore)
	maintenanceService := service.NewMaintenanceService(iconService, uploadService)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	if applied, err := authService.Bootstrap(startupCtx, cfg.AdminPassword); err != nil {
		log.Fatalf("bootstrap admin password: %v", err)
	} else if applied {
		logger.Info("admin password bootstrapped", "module", "main", "action", "create", "resource", "auth", "result", "ok")
	}
	if _, err := backupService.ImportLegacy(startupCtx, cfg.LegacyDir); err != nil {
		logger.Error("legacy import failed", "module", "main", "action", "import", "resource", "backup", "result", "failed", "dir", cfg.LegacyDir, "error", err)
	}
	cancelStartup()

	handlers := transport.Handlers{
		Auth:    handler.NewAuthHandler(authService, service.NewLoginLimiter(cfg.LoginRate)),
		Links:   handler.NewLinkHandler(linkService, previewService),
		Config:  handler.NewConfigHandler(configService),
		Uploads: handler.NewUploadHandler(uploadService, cfg.MaxUploadSize),
		Icons:   handler.NewIconHandler(iconService),
		Backup:  handler.NewBackupHandler(backupService),
	}
	router := transport.NewRouter(handlers, authService, cfg.StaticDir, web.FS())

	sched := scheduler.New(maintenanceService, cfg.MaintenanceInterval)
	sched.Start()

	go func() {
		logger.Info("server listening", "module", "main", "action", "request", "resource", "http", "result", "ok", "addr", cfg.Addr, "version", config.AppVersion)
		if err := router.Start(cfg.Addr); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("start server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down", "module", "main", "action", "request", "resource", "http", "result", "ok")

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "module", "main", "action", "request", "resource", "http", "result", "failed", "error", err)
	}
}
