package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	botmodels "chat-companion/backend/bots/models"
	convmodels "chat-companion/backend/conversation/models"
	"chat-companion/backend/internal/api"
	ledgermodels "chat-companion/backend/ledger/models"
	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/di"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/shared/observability"
	usermodels "chat-companion/backend/user/models"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	// Tracing and metrics
	shutdownTracing := observability.SetupTracing("companion-backend")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(
		&botmodels.Bot{},
		&usermodels.User{},
		&convmodels.Message{},
		&convmodels.AwaitingInput{},
		&ledgermodels.Entry{},
		&ledgermodels.Payment{},
	); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Initialize dependency injection container
	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	router, err := api.NewRouter(api.RouterConfig{
		Webhook:        container.Webhook,
		Admin:          container.Admin,
		WS:             container.WSGateway,
		Health:         container.Health,
		RateLimit:      cfg.Webhook.RateLimit,
		RateLimitBurst: cfg.Webhook.RateLimitBurst,
		SchemaPath:     cfg.OpenAPISchemaPath,
		Env:            cfg.Server.Env,
		Log:            log,
	})
	if err != nil {
		log.LogError(err, "Failed to build router")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
