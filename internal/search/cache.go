package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mfenderov/postseek/pkg/models"
)

// ResultCache stores search responses by query text.
type ResultCache interface {
	Get(ctx context.Context, query string) (*models.QueryResponse, bool, error)
	Set(ctx context.Context, query string, resp *models.QueryResponse) error
}

// NopCache caches nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*models.QueryResponse, bool, error) {
	return nil, false, nil
}

func (NopCache) Set(context.Context, string, *models.QueryResponse) error {
	return nil
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout bounds the startup ping.
const connectionTimeout = 5 * time.Second

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(address, password string, db int) (*redis.Client, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisCache keeps responses in Redis for a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache wraps client. Keys are "postseek:search:<query>".
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "postseek:search:"}
}

// Get returns the cached response for query, if any.
func (c *RedisCache) Get(ctx context.Context, query string) (*models.QueryResponse, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+query).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, true, nil
}

// Set stores resp for the cache TTL.
func (c *RedisCache) Set(ctx context.Context, query string, resp *models.QueryResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+query, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
