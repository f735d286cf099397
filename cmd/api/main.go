package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/storeforge/scanapi/internal/cache"
	"github.com/storeforge/scanapi/internal/config"
	"github.com/storeforge/scanapi/internal/database"
	"github.com/storeforge/scanapi/internal/handler"
	"github.com/storeforge/scanapi/internal/metrics"
	"github.com/storeforge/scanapi/internal/middleware"
	"github.com/storeforge/scanapi/internal/repository"
	"github.com/storeforge/scanapi/internal/service"
	"github.com/storeforge/scanapi/internal/utils"
	"github.com/storeforge/scanapi/internal/worker"
	"github.com/storeforge/scanapi/pkg/openfoodfacts"
	"github.com/storeforge/scanapi/pkg/upcitemdb"
)

// main is the application entrypoint for the scan-to-inventory API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting scan api")
	utils.ConfigureJWT(cfg.JWTSecret, cfg.JWTTTL)

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 3c. Initialize enrichment cache
	enrichmentCache := cache.NewEnrichmentCache(redisClient, cfg.Enrichment.CacheTTL)

	// 4. Context for workers, cloud clients and graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	templateRepo := repository.NewScanTemplateRepository(db)
	sessionRepo := repository.NewScanSessionRepository(db)
	resultRepo := repository.NewScanResultRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	photoRepo := repository.NewDirectoryPhotoRepository(db)

	// 5a. Initialize barcode data providers
	foodFacts := openfoodfacts.NewClient(cfg.Enrichment.OpenFoodFactsURL, cfg.Enrichment.Timeout)
	upc := upcitemdb.NewClient(cfg.Enrichment.UPCItemDBURL, cfg.Enrichment.UPCItemDBKey, cfg.Enrichment.Timeout)

	// 5b. Initialize object storage and photo labeling (both optional)
	var storage service.BlobStorage
	if s3Svc, err := service.NewS3Service(ctx, &cfg.Storage); err != nil {
		log.Warn().Err(err).Msg("Storage initialization failed - photo uploads will be disabled")
	} else {
		storage = s3Svc
	}

	var labeler service.PhotoLabeler
	if cfg.AWS.LabelPhotos {
		if rek, err := service.NewRekognitionLabeler(ctx, &cfg.AWS); err != nil {
			log.Warn().Err(err).Msg("Rekognition initialization failed - alt text generation will be disabled")
		} else {
			labeler = rek
		}
	}

	// 5c. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 6. Initialize services
	accessSvc := service.NewTenantAccessService(tenantRepo)
	authSvc := service.NewAuthService(userRepo, cfg.JWTTTL)
	enrichmentSvc := service.NewEnrichmentService(enrichmentCache, foodFacts, upc, categoryRepo)
	scanSvc := service.NewScanService(accessSvc, sessionRepo, resultRepo, inventoryRepo, templateRepo, enrichmentSvc, m, service.ScanOptions{
		MaxActiveSessions: cfg.Scan.MaxActiveSessions,
		IdleAfter:         cfg.Scan.IdleAfter,
		MaxGalleryPhotos:  cfg.Scan.MaxGalleryPhotos,
	})
	inventorySvc := service.NewInventoryService(accessSvc, inventoryRepo)
	photoSvc := service.NewDirectoryPhotoService(accessSvc, photoRepo, storage, labeler, m, cfg.Directory.MaxPhotos)

	// 7. Initialize middleware
	authLimiter := middleware.NewInvalidAuthRateLimiter(ctx, 5, time.Minute)
	jwtMw := middleware.NewJWTMiddleware(authLimiter)

	// 8. Initialize handlers
	handlers := &Handlers{
		Health:         handler.NewHealthHandler(db, redisClient),
		Auth:           handler.NewAuthHandler(authSvc, authLimiter),
		Scan:           handler.NewScanHandler(scanSvc),
		Inventory:      handler.NewInventoryHandler(inventorySvc),
		DirectoryPhoto: handler.NewDirectoryPhotoHandler(photoSvc),
	}

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedHosts))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware(m))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	setupRoutes(router, handlers, jwtMw)

	// 10. Start workers
	go worker.NewScanCleanupWorker(scanSvc, photoSvc, cfg.Worker.CleanupInterval).Start(ctx)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health         *handler.HealthHandler
	Auth           *handler.AuthHandler
	Scan           *handler.ScanHandler
	Inventory      *handler.InventoryHandler
	DirectoryPhoto *handler.DirectoryPhotoHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	api := router.Group("/api")

	// Public endpoints
	api.GET("/health", handlers.Health.GetHealth)
	api.POST("/auth/login", handlers.Auth.Login)
	api.GET("/auth/me", jwtMiddleware.Handle(), handlers.Auth.Me)

	// Scan sessions
	scan := api.Group("/scan")
	scan.Use(jwtMiddleware.Handle())
	{
		scan.POST("/start", handlers.Scan.StartSession)
		scan.GET("/sessions", handlers.Scan.ListSessions)
		scan.POST("/cleanup", middleware.RequireAdmin(), handlers.Scan.Cleanup)
		scan.GET("/:id", handlers.Scan.GetSession)
		scan.DELETE("/:id", handlers.Scan.CancelSession)
		scan.POST("/:id/lookup-barcode", handlers.Scan.LookupBarcode)
		scan.DELETE("/:id/results/:resultId", handlers.Scan.DeleteResult)
		scan.POST("/:id/validate", handlers.Scan.Validate)
		scan.POST("/:id/commit", handlers.Scan.Commit)
	}

	// Inventory catalog
	inventory := api.Group("/inventory")
	inventory.Use(jwtMiddleware.Handle())
	{
		inventory.GET("", handlers.Inventory.List)
		inventory.GET("/:id", handlers.Inventory.Get)
		inventory.DELETE("/:id", handlers.Inventory.Trash)
		inventory.POST("/:id/restore", handlers.Inventory.Restore)
	}

	// Directory listing photos
	photos := api.Group("/directory/:listingId/photos")
	photos.Use(jwtMiddleware.Handle())
	{
		photos.GET("", handlers.DirectoryPhoto.List)
		photos.POST("", handlers.DirectoryPhoto.Create)
		photos.PUT("/reorder", handlers.DirectoryPhoto.Reorder)
		photos.PATCH("/:photoId", handlers.DirectoryPhoto.Update)
		photos.DELETE("/:photoId", handlers.DirectoryPhoto.Delete)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
