package redis

import (
	"context"
	"time"

	"chat-companion/backend/pkg/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis for the few operations the orchestrator needs.
type Client struct {
	client *redis.Client
}

// NewClient builds a client from application configuration.
func NewClient() *Client {
	cfg := config.Get()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &Client{client: client}
}

// Set stores a value with an expiration
func (r *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value
func (r *Client) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Del removes a key
func (r *Client) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// ClaimOnce sets the key only if it does not exist yet and reports whether
// this caller won. Used to dedupe webhook redeliveries by platform update id.
func (r *Client) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, 1, ttl).Result()
}

// Ping checks connectivity, for health checks
func (r *Client) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
