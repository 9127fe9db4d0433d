package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"guardian-rag/internal/api"
	"guardian-rag/internal/api/handlers"
	"guardian-rag/internal/audit"
	"guardian-rag/internal/chunker"
	"guardian-rag/internal/embedding"
	"guardian-rag/internal/generator"
	"guardian-rag/internal/redactor"
	"guardian-rag/internal/retriever"
	"guardian-rag/internal/service"
	"guardian-rag/internal/vectorindex"
	"guardian-rag/pkg/auth"
	"guardian-rag/pkg/config"
	"guardian-rag/pkg/logger"
	"guardian-rag/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting GuardianRAG service")

	// Initialize storage backends
	ctx := context.Background()
	var index vectorindex.Index
	var auditLog audit.Logger

	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		index = vectorindex.NewPostgresIndex(db, appLogger)
		auditLog = audit.NewPostgresLogger(db, appLogger)
	case "memory":
		appLogger.Warn("Using in-memory storage; audit records will not survive restarts")
		index = vectorindex.NewMemoryIndex(appLogger)
		auditLog = audit.NewMemoryLogger()
	}

	// Initialize pipeline components
	chk, err := chunker.New(cfg.Chunking)
	if err != nil {
		appLogger.Fatal("Failed to initialize chunker", zap.Error(err))
	}

	embedder := embedding.NewClient(&cfg.OpenAI, cfg.Embedding, appLogger)
	ret := retriever.New(index, cfg.Retrieval, appLogger)
	red := redactor.New(appLogger)
	gen := generator.New(&cfg.OpenAI, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)

	// Initialize services
	ingestService := service.NewIngestService(chk, chunker.DefaultCleanConfig(), embedder, index, appLogger)
	queryService := service.NewQueryService(embedder, ret, red, gen, auditLog, cfg.Retrieval, appLogger)

	// Initialize handlers
	ingestHandler := handlers.NewIngestHandler(ingestService, appLogger)
	queryHandler := handlers.NewQueryHandler(queryService, appLogger)
	auditHandler := handlers.NewAuditHandler(auditLog, appLogger)

	// Setup router
	app := api.SetupRouter(ingestHandler, queryHandler, auditHandler, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
