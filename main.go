// ringside/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ringside/config"
	"ringside/database"
	"ringside/handlers"
	"ringside/models"
	"ringside/policy"
	"ringside/utils"
)

type Application struct {
	db          *database.DatabaseService
	policy      *policy.Engine
	sessions    *models.SessionStore
	rateLimiter *models.RateLimiter
	logger      *slog.Logger
	uploadDir   string
	storage     utils.StorageService
}

// Methods to satisfy the handlers.App interface
func (a *Application) DB() *database.DatabaseService    { return a.db }
func (a *Application) Policy() *policy.Engine           { return a.policy }
func (a *Application) Sessions() *models.SessionStore   { return a.sessions }
func (a *Application) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *Application) Logger() *slog.Logger             { return a.logger }
func (a *Application) UploadDir() string                { return a.uploadDir }
func (a *Application) Storage() utils.StorageService    { return a.storage }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- External Configuration ---
	port := utils.GetEnv("PORT", "8080")
	dbPath := utils.GetEnv("DB_PATH", "./ringside.db?_journal_mode=WAL&_foreign_keys=on")
	uploadDir := utils.GetEnv("UPLOAD_DIR", "./uploads")

	rateLimitEvery, err := time.ParseDuration(utils.GetEnv("RATE_EVERY", config.DefaultRateLimitEvery))
	if err != nil {
		logger.Warn("Invalid RINGSIDE_RATE_EVERY duration, using default", "value", utils.GetEnv("RATE_EVERY", ""), "default", config.DefaultRateLimitEvery)
		rateLimitEvery, _ = time.ParseDuration(config.DefaultRateLimitEvery)
	}
	rateLimitBurst, err := strconv.Atoi(utils.GetEnv("RATE_BURST", strconv.Itoa(config.DefaultRateLimitBurst)))
	if err != nil {
		logger.Warn("Invalid RINGSIDE_RATE_BURST integer, using default", "value", utils.GetEnv("RATE_BURST", ""), "default", config.DefaultRateLimitBurst)
		rateLimitBurst = config.DefaultRateLimitBurst
	}
	rateLimitPrune, err := time.ParseDuration(utils.GetEnv("RATE_PRUNE", config.DefaultRateLimitPrune))
	if err != nil {
		logger.Warn("Invalid RINGSIDE_RATE_PRUNE duration, using default", "value", utils.GetEnv("RATE_PRUNE", ""), "default", config.DefaultRateLimitPrune)
		rateLimitPrune, _ = time.ParseDuration(config.DefaultRateLimitPrune)
	}
	rateLimitExpire, err := time.ParseDuration(utils.GetEnv("RATE_EXPIRE", config.DefaultRateLimitExpire))
	if err != nil {
		logger.Warn("Invalid RINGSIDE_RATE_EXPIRE duration, using default", "value", utils.GetEnv("RATE_EXPIRE", ""), "default", config.DefaultRateLimitExpire)
		rateLimitExpire, _ = time.ParseDuration(config.DefaultRateLimitExpire)
	}

	dbService, err := database.InitDB(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Error("FATAL: Could not create uploads directory", "error", err)
		os.Exit(1)
	}

	// --- Storage Service Init ---
	var storageService utils.StorageService
	var s3PublicURL string
	if utils.GetEnv("S3_ENABLED", "false") == "true" {
		endpoint := utils.GetEnv("S3_ENDPOINT", "")
		accessKey := utils.GetEnv("S3_ACCESS_KEY", "")
		secretKey := utils.GetEnv("S3_SECRET_KEY", "")
		bucket := utils.GetEnv("S3_BUCKET", "")
		region := utils.GetEnv("S3_REGION", "us-east-1")
		publicURL := utils.GetEnv("S3_PUBLIC_URL", "")
		useSSL := utils.GetEnv("S3_USE_SSL", "true") == "true"

		s3Store, err := utils.NewS3Storage(endpoint, accessKey, secretKey, bucket, region, publicURL, useSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		storageService = s3Store
		s3PublicURL = s3Store.PublicURL
		logger.Info("S3 Storage initialized", "endpoint", endpoint, "bucket", bucket)
	} else {
		storageService = &utils.LocalStorage{UploadDir: uploadDir}
		logger.Info("Local Storage initialized", "dir", uploadDir)
	}

	app := &Application{
		db:          dbService,
		policy:      policy.NewEngine(dbService),
		sessions:    models.NewSessionStore(config.SessionTTL),
		rateLimiter: models.NewRateLimiter(rateLimitEvery, rateLimitBurst, rateLimitPrune, rateLimitExpire),
		logger:      logger,
		uploadDir:   uploadDir,
		storage:     storageService,
	}

	mux := handlers.SetupRouter(app)
	finalHandler := handlers.AppContextMiddleware(app,
		handlers.SessionMiddleware(app)(
			handlers.CSRFMiddleware(
				handlers.NewSecurityHeadersMiddleware(s3PublicURL)(mux))))

	// --- Graceful Shutdown ---
	server := &http.Server{Addr: ":" + port, Handler: finalHandler}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("ringside server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+port,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
