package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yzRobo/mintcanvas-server/internal/common"
	"github.com/yzRobo/mintcanvas-server/internal/counter"
	"github.com/yzRobo/mintcanvas-server/internal/history"
	"github.com/yzRobo/mintcanvas-server/internal/pinning"
	"github.com/yzRobo/mintcanvas-server/internal/storage"
	"github.com/yzRobo/mintcanvas-server/internal/upload"
	"github.com/yzRobo/mintcanvas-server/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.LoadFromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load config file")
		}
	}

	setupLogging(cfg.Logging)

	log.Info().Msg("starting MintCanvas pinning server")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize blob storage for chunk staging
	storageFactory := storage.NewStorageFactory(&cfg.Storage)
	blobStorage, err := storageFactory.CreateStorage()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Initialize the chunk counter store
	counterStore, err := counter.NewStore(&cfg.Counter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize counter store")
	}
	defer counterStore.Close()

	// Initialize the pinning client
	pinner, err := pinning.NewClient(&cfg.Pinata)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pinning client")
	}

	// Initialize the pin-history database
	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Initialize services
	historyService := history.NewService(db)
	uploadService := upload.NewService(blobStorage, counterStore, pinner, historyService, cfg.Pinata.URIScheme)

	// Setup HTTP server
	router := setupRouter(uploadService, historyService, cfg.Server.CORSOrigin)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	} else {
		log.Info().Msg("server shutdown complete")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func setupRouter(uploadService *upload.Service, historyService *history.Service, corsOrigin string) *gin.Engine {
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(corsOrigin))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "mintcanvas-pinning-server",
			"time":    time.Now().UTC(),
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		uploads := api.Group("/uploads")
		{
			uploads.POST("/init", handleInitUpload(uploadService))
			uploads.POST("/chunk", handleUploadChunk(uploadService))
			uploads.POST("/finalize", handleFinalizeUpload(uploadService))
		}

		api.POST("/pin", handleDirectPin(uploadService))
		api.GET("/pins", handleListPins(historyService))
	}

	return router
}

func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
