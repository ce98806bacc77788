package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/storage"
)

// RedisClient handles caching operations
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	// Parse Redis URL or use default options
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	// Set connection timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	// Create client
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{
		client: client,
		config: config,
	}, nil
}

// GetProfile retrieves a cached user profile. A cache miss returns nil, nil.
func (c *RedisClient) GetProfile(ctx context.Context, email string) (*access.Profile, error) {
	key := fmt.Sprintf("profile:%s", email)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var profile access.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return &profile, nil
}

// SetProfile stores a user profile in cache
func (c *RedisClient) SetProfile(ctx context.Context, profile *access.Profile) error {
	key := fmt.Sprintf("profile:%s", profile.Email)
	ttl := c.config.CacheTTL["profile"]

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// InvalidateProfile removes a user profile from cache
func (c *RedisClient) InvalidateProfile(ctx context.Context, email string) error {
	key := fmt.Sprintf("profile:%s", email)
	return c.client.Del(ctx, key).Err()
}

// GetRequirement retrieves a cached document requirement. A cache miss
// returns nil, nil.
func (c *RedisClient) GetRequirement(ctx context.Context, docKey string) (*access.Requirement, error) {
	key := fmt.Sprintf("requirement:%s", docKey)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var req access.Requirement
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal requirement: %w", err)
	}

	return &req, nil
}

// SetRequirement stores a document requirement in cache
func (c *RedisClient) SetRequirement(ctx context.Context, docKey string, req *access.Requirement) error {
	key := fmt.Sprintf("requirement:%s", docKey)
	ttl := c.config.CacheTTL["requirement"]

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal requirement: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// InvalidateRequirement removes a document requirement from cache
func (c *RedisClient) InvalidateRequirement(ctx context.Context, docKey string) error {
	key := fmt.Sprintf("requirement:%s", docKey)
	return c.client.Del(ctx, key).Err()
}

// GetSearchResults retrieves a cached candidate set for a search term. A
// cache miss returns nil, nil.
func (c *RedisClient) GetSearchResults(ctx context.Context, query string, limit int) ([]*storage.Document, error) {
	key := searchKey(query, limit)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var docs []*storage.Document
	if err := json.Unmarshal([]byte(data), &docs); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal search results: %w", err)
	}

	return docs, nil
}

// SetSearchResults stores a candidate set for a search term
func (c *RedisClient) SetSearchResults(ctx context.Context, query string, limit int, docs []*storage.Document) error {
	key := searchKey(query, limit)
	ttl := c.config.CacheTTL["search"]

	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func searchKey(query string, limit int) string {
	return fmt.Sprintf("search:%s:%d", strings.ToLower(strings.TrimSpace(query)), limit)
}

// InvalidatePatterns removes keys matching patterns
func (c *RedisClient) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		// Use SCAN to find matching keys
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client for health checks
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// GetPoolStats returns connection pool statistics
func (c *RedisClient) GetPoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// Incr increments a counter (for rate limiting)
func (c *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Expire sets a key's expiration
func (c *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.client.Expire(ctx, key, expiration).Err()
}

// TTL returns the remaining time to live of a key
func (c *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, key).Result()
}

// SetNX sets a key only if it doesn't exist (for distributed locks)
func (c *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, expiration).Result()
}
