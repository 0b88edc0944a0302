package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/innunfold/hall-feeds/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Cache implements domain.FeedCache on Redis. Ranked feeds are stored as
// JSON blobs under the key the service builds, expiring after the lane's
// staleness window.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis at the given address and verifies the connection.
func New(addr string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{rdb: rdb}, nil
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// GetFeed returns the cached feed for key, or a miss.
func (c *Cache) GetFeed(ctx context.Context, key string) ([]domain.FeedPost, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var posts []domain.FeedPost
	if err := json.Unmarshal(b, &posts); err != nil {
		return nil, false, fmt.Errorf("decode cached feed: %w", err)
	}
	return posts, true, nil
}

// SetFeed caches a ranked feed for ttl.
func (c *Cache) SetFeed(ctx context.Context, key string, posts []domain.FeedPost, ttl time.Duration) error {
	b, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}
