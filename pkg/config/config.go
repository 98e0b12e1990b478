package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Redis configuration
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Webhook ingestion
	Webhook struct {
		SecretToken    string
		RateLimit      float64
		RateLimitBurst int
	}

	// Turn processing tunables
	Turn struct {
		DebounceWindow    time.Duration
		AnimatorTick      time.Duration
		MaxPayloadBytes   int
		CompletionRetries int
		RetryBackoff      time.Duration
		AudioPollAttempts int
		AudioPollDelay    time.Duration
	}

	// Credit accounting
	Credits struct {
		TextCost    int64
		AudioCost   int64
		PhotoCost   int64
		SignupBonus int64
	}

	// Asset catalog cache
	Catalog struct {
		TTL        time.Duration
		MaxRetries int
	}

	// Bot profile cache
	Profiles struct {
		TTL time.Duration
	}

	// AI backend endpoints. API keys come from the secrets manager.
	AI struct {
		Model            string
		SpeechBaseURL    string
		CaptionEndpoints []string
	}

	// Media asset storage
	Assets struct {
		Dir string
	}

	// JWT configuration (admin surface)
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Admin credential (bcrypt hash)
	Admin struct {
		User         string
		PasswordHash string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// OpenAPI schema used for optional webhook validation
	OpenAPISchemaPath string
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		godotenv.Load()

		instance = &Config{}

		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "companion")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		instance.Webhook.SecretToken = getEnvString("WEBHOOK_SECRET_TOKEN", "")
		instance.Webhook.RateLimit = float64(getEnvInt("WEBHOOK_RATE_LIMIT", 5))
		instance.Webhook.RateLimitBurst = getEnvInt("WEBHOOK_RATE_LIMIT_BURST", 10)

		instance.Turn.DebounceWindow = getEnvDuration("TURN_DEBOUNCE_WINDOW", 3*time.Second)
		instance.Turn.AnimatorTick = getEnvDuration("TURN_ANIMATOR_TICK", time.Second)
		instance.Turn.MaxPayloadBytes = getEnvInt("TURN_MAX_PAYLOAD_BYTES", 8*1024)
		instance.Turn.CompletionRetries = getEnvInt("TURN_COMPLETION_RETRIES", 3)
		instance.Turn.RetryBackoff = getEnvDuration("TURN_RETRY_BACKOFF", 2*time.Second)
		instance.Turn.AudioPollAttempts = getEnvInt("TURN_AUDIO_POLL_ATTEMPTS", 5)
		instance.Turn.AudioPollDelay = getEnvDuration("TURN_AUDIO_POLL_DELAY", 5*time.Second)

		instance.Credits.TextCost = getEnvInt64("CREDIT_COST_TEXT", -1)
		instance.Credits.AudioCost = getEnvInt64("CREDIT_COST_AUDIO", -5)
		instance.Credits.PhotoCost = getEnvInt64("CREDIT_COST_PHOTO", -5)
		instance.Credits.SignupBonus = getEnvInt64("CREDIT_SIGNUP_BONUS", 50)

		instance.Catalog.TTL = getEnvDuration("CATALOG_TTL", time.Hour)
		instance.Catalog.MaxRetries = getEnvInt("CATALOG_MAX_RETRIES", 3)

		instance.Profiles.TTL = getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute)

		instance.AI.Model = getEnvString("AI_MODEL", "gpt-4o-mini")
		instance.AI.SpeechBaseURL = getEnvString("SPEECH_BASE_URL", "")
		instance.AI.CaptionEndpoints = getEnvStringSlice("CAPTION_ENDPOINTS", nil)

		instance.Assets.Dir = getEnvString("ASSETS_DIR", "./assets")

		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		instance.Admin.User = getEnvString("ADMIN_USER", "admin")
		instance.Admin.PasswordHash = getEnvString("ADMIN_PASSWORD_HASH", "")

		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		instance.OpenAPISchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
