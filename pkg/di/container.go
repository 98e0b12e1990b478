// Package di wires the application graph. Everything downstream of the
// database handle is constructed here so main stays a thin shell.
package di

import (
	"context"

	"gorm.io/gorm"

	"chat-companion/backend/ai"
	botrepo "chat-companion/backend/bots/repository"
	botservice "chat-companion/backend/bots/service"
	convrepo "chat-companion/backend/conversation/repository"
	convservice "chat-companion/backend/conversation/service"
	"chat-companion/backend/gateway"
	"chat-companion/backend/internal/api"
	ledgerrepo "chat-companion/backend/ledger/repository"
	ledgerservice "chat-companion/backend/ledger/service"
	mediaservice "chat-companion/backend/media/service"
	mediastore "chat-companion/backend/media/store"
	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/health"
	"chat-companion/backend/pkg/jwt"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/secrets"
	"chat-companion/backend/shared/redis"
	userrepo "chat-companion/backend/user/repository"
	userservice "chat-companion/backend/user/service"
)

// Container holds all the dependencies for the application
type Container struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Redis  *redis.Client

	JWTService     *jwt.Service
	ProfileService *botservice.ProfileService
	UserService    *userservice.UserService
	LedgerService  *ledgerservice.Service
	Catalog        *mediaservice.Catalog
	Dispatcher     *ai.Dispatcher
	Tracker        *convservice.Tracker
	Orchestrator   *convservice.Orchestrator
	TurnQueue      *convservice.TurnQueue

	WSGateway *gateway.WSGateway
	Webhook   *api.WebhookHandler
	Admin     *api.AdminHandler
	Health    *health.Checker
}

// New builds the full graph from the database handle and configuration.
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if err := secrets.Init(log); err != nil {
		return nil, err
	}
	ctx := context.Background()

	redisClient := redis.NewClient()

	// Repositories
	botRepository := botrepo.NewGormBotRepository(db)
	userRepository := userrepo.NewGormUserRepository(db)
	ledgerRepository := ledgerrepo.NewGormLedgerRepository(db)
	paymentRepository := ledgerrepo.NewGormPaymentRepository(db)
	messageRepository := convrepo.NewGormMessageRepository(db)
	awaitingRepository := convrepo.NewGormAwaitingRepository(db)

	// Domain services
	profileService := botservice.NewProfileService(botRepository, cfg.Profiles.TTL)
	ledgerService := ledgerservice.NewService(ledgerRepository, paymentRepository, cfg.Credits.SignupBonus, log)
	users := userservice.NewUserService(userRepository, ledgerService, log)

	catalog := mediaservice.NewCatalog(
		mediastore.NewLocalStore(cfg.Assets.Dir),
		cfg.Catalog.TTL,
		cfg.Catalog.MaxRetries,
		log,
	)

	// AI backends. Keys come from the secrets manager so they can live
	// in Vault in production and plain env in development.
	openAIKey := secrets.GetSecretWithDefault(ctx, "OPENAI_API_KEY", "")
	completion := ai.NewOpenAIClient(openAIKey, cfg.AI.Model)
	speech := ai.NewSpeechClient(
		secrets.GetSecretWithDefault(ctx, "SPEECH_API_KEY", ""),
		cfg.AI.SpeechBaseURL,
	)
	caption := ai.NewCaptionClient(
		secrets.GetSecretWithDefault(ctx, "CAPTION_API_KEY", ""),
		cfg.AI.CaptionEndpoints...,
	)

	dispatcher := ai.NewDispatcher(completion, speech, caption, catalog, ai.Options{
		MaxPayloadBytes:   cfg.Turn.MaxPayloadBytes,
		CompletionRetries: cfg.Turn.CompletionRetries,
		RetryBackoff:      cfg.Turn.RetryBackoff,
		AudioPollAttempts: cfg.Turn.AudioPollAttempts,
		AudioPollDelay:    cfg.Turn.AudioPollDelay,
	}, log)

	// Turn pipeline
	tracker := convservice.NewTracker(awaitingRepository, log)
	animator := convservice.NewAnimator(cfg.Turn.AnimatorTick, log)
	orchestrator := convservice.NewOrchestrator(
		messageRepository,
		tracker,
		dispatcher,
		ledgerService,
		animator,
		convservice.Costs{
			Text:  cfg.Credits.TextCost,
			Audio: cfg.Credits.AudioCost,
			Photo: cfg.Credits.PhotoCost,
		},
		log,
	)
	queue := convservice.NewTurnQueue(messageRepository, orchestrator, cfg.Turn.DebounceWindow, log)

	// Gateways. Production resolves a Telegram gateway per bot token;
	// development can point chats at the websocket gateway instead.
	wsGateway := gateway.NewWSGateway(log)
	gatewayFor := func(token string) gateway.MessagingGateway {
		if cfg.Server.Env == "development" && token == "ws" {
			return wsGateway
		}
		return gateway.NewTelegramGateway(token, log)
	}

	// HTTP surface
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	webhook := api.NewWebhookHandler(
		profileService,
		users,
		ledgerService,
		messageRepository,
		tracker,
		queue,
		redisClient,
		completion,
		caption,
		gatewayFor,
		cfg.Webhook.SecretToken,
		log,
	)
	admin := api.NewAdminHandler(ledgerService, jwtService, cfg.Admin.User, cfg.Admin.PasswordHash, log)

	checker := health.NewChecker(log)
	checker.Register("database", func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	checker.Register("redis", func() error {
		return redisClient.Ping(context.Background())
	})

	return &Container{
		DB:             db,
		Logger:         log,
		Redis:          redisClient,
		JWTService:     jwtService,
		ProfileService: profileService,
		UserService:    users,
		LedgerService:  ledgerService,
		Catalog:        catalog,
		Dispatcher:     dispatcher,
		Tracker:        tracker,
		Orchestrator:   orchestrator,
		TurnQueue:      queue,
		WSGateway:      wsGateway,
		Webhook:        webhook,
		Admin:          admin,
		Health:         checker,
	}, nil
}
