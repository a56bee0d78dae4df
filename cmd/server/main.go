package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docchat-backend/internal/api"
	"docchat-backend/internal/blob"
	"docchat-backend/internal/config"
	"docchat-backend/internal/extract"
	"docchat-backend/internal/handlers"
	"docchat-backend/internal/llm"
	"docchat-backend/internal/services"
	"docchat-backend/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().Msg("starting docchat backend")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create database connection pool")
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}
	log.Info().Msg("database connection pool established")

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("running migrations failed")
	}

	// 3. Initialize Dependencies (Store, Blob Storage, Extractors, LLM)
	pgStore := postgres.NewPostgresStore(dbpool)

	blobStore, err := blob.NewLocalStore(cfg.UploadDir, cfg.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing blob store failed")
	}

	extractors := extract.NewRegistry()
	plainText := extract.NewPlainText()
	extractors.Register("text/plain", plainText)
	extractors.Register("text/rtf", plainText)

	generator, err := llm.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing gemini client failed")
	}

	// --- Initialize Services ---
	maxUploadBytes := cfg.MaxUploadMB << 20
	authService := services.NewAuthService(pgStore, cfg)
	assembler := services.NewContextAssembler(pgStore)
	encoder := services.NewAttachmentEncoder(pgStore, blobStore, extractors, cfg.ExtractionTimeout, maxUploadBytes)
	turnService := services.NewTurnService(pgStore, generator, assembler, encoder, cfg.GenerationTimeout)
	conversationService := services.NewConversationService(pgStore)
	webhookURL := cfg.BaseURL + "/webhooks/process-file"
	fileService := services.NewFileService(pgStore, blobStore, extractors, cfg.ExtractionTimeout, maxUploadBytes, webhookURL, cfg.WebhookSecret)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandlers(turnService, conversationService)
	conversationHandler := handlers.NewConversationHandlers(conversationService)
	fileHandler := handlers.NewFileHandlers(fileService, cfg.WebhookSecret)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:         authHandler,
		ChatHandler:         chatHandler,
		ConversationHandler: conversationHandler,
		FileHandler:         fileHandler,
		AuthService:         authService,
		UploadDir:           cfg.UploadDir,
		Config:              cfg,
	})

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout must cover a full streamed generation.
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-stopChan
	log.Info().Msg("shutdown signal received, draining connections")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server shutdown complete")
}
