package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/decisiondesk/meetscribe/internal/ai"
	"github.com/decisiondesk/meetscribe/internal/api/handler"
	"github.com/decisiondesk/meetscribe/internal/api/router"
	"github.com/decisiondesk/meetscribe/internal/config"
	"github.com/decisiondesk/meetscribe/internal/meetings"
	meetingstorage "github.com/decisiondesk/meetscribe/internal/meetings/storage"
	"github.com/decisiondesk/meetscribe/internal/queue"
	queuestorage "github.com/decisiondesk/meetscribe/internal/queue/storage"
	"github.com/decisiondesk/meetscribe/internal/transcription"
	"github.com/decisiondesk/meetscribe/shared/logger"
	"github.com/decisiondesk/meetscribe/shared/postgresql"
	"github.com/decisiondesk/meetscribe/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client when enabled; without it job events are
	// simply not published.
	var rabbitClient *rabbitmq.Client
	var publisher queue.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		publisher = rabbitClient
		appLogger.Info("RabbitMQ connection established")
	} else {
		appLogger.Info("RabbitMQ disabled, job events will not be published")
	}

	// Stores
	meetingStore := meetingstorage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	queueStore := queuestorage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	// Queue service and reconciler
	queueService := queue.NewService(queueStore, publisher, cfg.Transcription.MaxRetries, appLogger.Logger)
	reconciler := queue.NewReconciler(queueStore, queue.ReconcilerConfig{
		MaxRetries:       cfg.Transcription.MaxRetries,
		JobTimeout:       cfg.Transcription.JobTimeout,
		CleanupRetention: cfg.Transcription.CleanupRetention,
		RetryInterval:    cfg.Transcription.RetryInterval,
		TimeoutInterval:  cfg.Transcription.TimeoutInterval,
		StatsInterval:    cfg.Transcription.StatsInterval,
		CleanupCron:      cfg.Transcription.CleanupCron,
	}, appLogger.Logger)

	// Transcription providers and orchestrator
	estimator, err := initEstimator(&cfg.Costs)
	if err != nil {
		return fmt.Errorf("failed to initialize cost estimator: %w", err)
	}

	transcriptionRouter := transcription.NewRouter(
		transcription.NewOpenAIProvider(transcription.OpenAIConfig{
			APIKey:  cfg.Transcription.OpenAI.APIKey,
			BaseURL: cfg.Transcription.OpenAI.BaseURL,
			Timeout: cfg.Transcription.OpenAI.Timeout,
		}, appLogger.Logger),
		transcription.NewWhisperCppProvider(transcription.WhisperCppConfig{
			BinaryPath: cfg.Transcription.Whisper.BinaryPath,
			ModelsDir:  cfg.Transcription.Whisper.ModelsDir,
			Timeout:    cfg.Transcription.Whisper.Timeout,
		}, appLogger.Logger),
	)

	orchestrator := transcription.NewOrchestrator(
		meetingStore,
		queueService,
		transcriptionRouter,
		estimator,
		cfg.Transcription.DefaultLanguage,
		appLogger.Logger,
	)

	// Completion providers and extraction
	aiRouter := ai.NewRouter(
		ai.NewOllamaProvider(ai.OllamaConfig{
			BaseURL:      cfg.AI.Ollama.BaseURL,
			DefaultModel: cfg.AI.Ollama.DefaultModel,
			Timeout:      cfg.AI.Ollama.Timeout,
		}, appLogger.Logger),
		ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:  cfg.Transcription.OpenAI.APIKey,
			BaseURL: cfg.Transcription.OpenAI.BaseURL,
			Timeout: cfg.Transcription.OpenAI.Timeout,
		}, appLogger.Logger),
	)
	extraction := ai.NewExtractionService(aiRouter, meetingStore, appLogger.Logger)

	// Start background sweeps
	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	if err := reconciler.Start(reconcilerCtx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, dbClient, rabbitClient, meetingStore, queueService, orchestrator, extraction)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		stopReconciler()
		reconciler.Stop()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ job-event publisher
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		Password:      cfg.Password,
		VHost:         cfg.VHost,
		Exchange:      cfg.Exchange,
		RoutingKey:    cfg.RoutingKey,
		RetryAttempts: cfg.RetryAttempts,
		RetryInterval: cfg.RetryInterval,
		Heartbeat:     cfg.Heartbeat,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initEstimator parses the pricing constants into a cost estimator
func initEstimator(cfg *config.CostsConfig) (*transcription.Estimator, error) {
	price, err := decimal.NewFromString(cfg.WhisperPricePerMinUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid whisper_price_per_min_usd %q: %w", cfg.WhisperPricePerMinUSD, err)
	}

	fx, err := decimal.NewFromString(cfg.FxUSDBRL)
	if err != nil {
		return nil, fmt.Errorf("invalid fx_usd_brl %q: %w", cfg.FxUSDBRL, err)
	}

	return transcription.NewEstimator(price, fx), nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client,
	rabbitClient *rabbitmq.Client, meetingStore meetings.Store, queueService *queue.Service,
	orchestrator *transcription.Orchestrator, extraction *ai.ExtractionService) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:       logger,
		DBClient:     dbClient,
		Events:       rabbitClient,
		Meetings:     meetingStore,
		Queue:        queueService,
		Orchestrator: orchestrator,
		Extraction:   extraction,
		DataDir:      cfg.Storage.DataDir,
		DefaultOptions: transcription.Options{
			Provider: transcription.ParseKind(cfg.Transcription.DefaultProvider),
			Model:    transcription.ParseModel(cfg.Transcription.DefaultModel),
		},
		DefaultAIProvider: cfg.AI.DefaultProvider,
	}

	// Setup router
	return router.SetupRouter(handlerDeps)
}
