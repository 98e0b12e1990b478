package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"chat-companion/backend/gateway"
	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/health"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/middleware"
	"chat-companion/backend/pkg/validator"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Webhook *WebhookHandler
	Admin   *AdminHandler
	WS      *gateway.WSGateway
	Health  *health.Checker

	RateLimit      float64
	RateLimitBurst int

	// SchemaPath enables OpenAPI request validation when set.
	SchemaPath string

	Env string
	Log *logger.Logger
}

// NewRouter assembles the gin engine: ambient middleware, webhook
// ingestion, the admin surface, and the operational endpoints.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(logger.Middleware(cfg.Log))
	router.Use(apperrors.Recovery())
	router.Use(apperrors.ErrorHandler())

	if cfg.SchemaPath != "" {
		v, err := validator.NewOpenAPIValidator(cfg.SchemaPath)
		if err != nil {
			return nil, err
		}
		router.Use(v.Middleware())
	}

	router.GET("/health", cfg.Health.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := middleware.NewRateLimiter(cfg.Log, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.RateLimit),
		Burst:          cfg.RateLimitBurst,
		ExpiryDuration: time.Hour,
		// One bucket per bot webhook path; a noisy bot cannot starve
		// the others.
		KeyFunc: func(c *gin.Context) string {
			return c.Param("botShortName") + ":" + c.ClientIP()
		},
	})
	router.POST("/webhook/:token/:botShortName", limiter.Middleware(), cfg.Webhook.Handle)

	admin := router.Group("/api/admin")
	{
		admin.POST("/login", cfg.Admin.Login)
		admin.GET("/balance/:userID/:botID", cfg.Admin.AuthRequired(), cfg.Admin.Balance)
	}

	if cfg.WS != nil {
		router.GET("/ws/chat", cfg.WS.Handler())
	}

	return router, nil
}
