package cache

import (
	"context"
	"encoding/json"
	"time"

	"shortlink/internal/types"

	"github.com/redis/go-redis/v9"
)

// Cache keeps recently resolved mappings in Redis so the redirect path
// usually skips Postgres entirely. Values are small JSON blobs keyed by
// short code.
type Cache struct {
	rdb *redis.Client
}

func ConnectRedis(url, password string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{rdb: rdb}, nil
}

// Get returns the cached mapping for a short code. A miss surfaces as
// redis.Nil for the caller to fall through to the database.
func (c *Cache) Get(ctx context.Context, shortCode string) (*types.MappingCache, error) {
	raw, err := c.rdb.Get(ctx, shortCode).Bytes()
	if err != nil {
		return nil, err
	}
	var mc types.MappingCache
	if err := json.Unmarshal(raw, &mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

func (c *Cache) Set(ctx context.Context, shortCode string, mc *types.MappingCache, expiration time.Duration) error {
	raw, err := json.Marshal(mc)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, shortCode, raw, expiration).Err()
}

func (c *Cache) Delete(ctx context.Context, shortCode string) error {
	return c.rdb.Del(ctx, shortCode).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
