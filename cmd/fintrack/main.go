package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/api/handlers"
	"fintrack/internal/parser"
	"fintrack/internal/parser/extract"
	"fintrack/internal/repository"
	"fintrack/internal/service"
	"fintrack/internal/staging"
	"fintrack/internal/storage"
	"fintrack/pkg/auth"
	"fintrack/pkg/config"
	"fintrack/pkg/logger"
	"fintrack/pkg/postgres"

	"go.uber.org/zap"
)

// @title fintrack API
// @version 1.0
// @description Receipt and bank statement import for a personal finance ledger
// @BasePath /api/v1
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Format); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting fintrack service")

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db, appLogger); err != nil {
			appLogger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	userRepo := repository.NewUserRepository(db, appLogger)
	categoryRepo := repository.NewCategoryRepository(db, appLogger)
	txRepo := repository.NewTransactionRepository(db, appLogger)

	var jobStore staging.Store
	switch cfg.Import.StagingBackend {
	case config.StagingBackendMemory:
		appLogger.Warn("Import jobs are kept in memory and lost on restart")
		jobStore = staging.NewMemoryStore()
	default:
		jobStore = repository.NewImportJobRepository(db, appLogger)
	}

	documents, closeDocuments, err := newDocumentStore(ctx, &cfg.Storage)
	if err != nil {
		appLogger.Fatal("Failed to initialize document storage", zap.Error(err))
	}
	defer closeDocuments.Close()

	var llm parser.RecordExtractor
	if cfg.GigaChat.Enabled {
		gigachat, err := parser.NewGigaChatExtractor(ctx, &cfg.GigaChat, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize GigaChat", zap.Error(err))
		}
		defer gigachat.Close()
		llm = gigachat
	}
	docParser := parser.NewDocumentParser(extract.New(cfg.OCR.Languages, appLogger), llm, appLogger)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	authService := service.NewAuthService(userRepo, jwtManager, appLogger)
	categoryService := service.NewCategoryService(categoryRepo, appLogger)
	transactionService := service.NewTransactionService(txRepo, appLogger)
	importService := service.NewImportService(jobStore, docParser, documents, categoryService, transactionService,
		service.ImportOptions{
			DefaultCurrency:   cfg.Import.DefaultCurrency,
			CommitWaitTimeout: cfg.Import.CommitWaitTimeout,
			LedgerRetries:     cfg.Import.LedgerRetries,
		}, appLogger)

	app := api.SetupRouter(api.Handlers{
		Auth:        handlers.NewAuthHandler(authService, appLogger),
		Import:      handlers.NewImportHandler(importService, cfg.Import.PreviewRows, appLogger),
		Category:    handlers.NewCategoryHandler(categoryService, appLogger),
		Transaction: handlers.NewTransactionHandler(transactionService, appLogger),
		Health:      handlers.NewHealthHandler(db, appLogger),
	}, jwtManager, api.Options{
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, appLogger)

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(ctx, cfg.Import.CommitWaitTimeout)
	defer cancel()
	if err := importService.Drain(drainCtx); err != nil {
		appLogger.Error("Commits still running at shutdown", zap.Error(err))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newDocumentStore(ctx context.Context, cfg *config.StorageConfig) (storage.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.StorageBackendGCS:
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		return gcs, gcs, nil
	default:
		local, err := storage.NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		return local, nopCloser{}, nil
	}
}
