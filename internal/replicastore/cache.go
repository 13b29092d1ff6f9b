package replicastore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// MetadataCache is a non-authoritative, best-effort read-through cache in
// front of MetadataStore. A miss or error here always falls back to the
// store; nothing about correctness depends on the cache being populated or
// even reachable.
type MetadataCache interface {
	Get(ctx context.Context, blobID string) (*wire.MessageInfo, bool)
	Set(ctx context.Context, info wire.MessageInfo)
	Invalidate(ctx context.Context, blobID string)
}

// NoOpMetadataCache implements MetadataCache but never retains anything; it
// is the default when no cache address is configured.
type NoOpMetadataCache struct{}

func (NoOpMetadataCache) Get(ctx context.Context, blobID string) (*wire.MessageInfo, bool) { return nil, false }
func (NoOpMetadataCache) Set(ctx context.Context, info wire.MessageInfo)                   {}
func (NoOpMetadataCache) Invalidate(ctx context.Context, blobID string)                    {}

// RedisMetadataCache caches wire.MessageInfo records in Redis with a fixed
// TTL. Lookup and store failures are swallowed (treated as a miss / no-op)
// since the cache is never the source of truth.
type RedisMetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMetadataCache dials Redis and verifies connectivity with Ping.
func NewRedisMetadataCache(ctx context.Context, address string, ttlSeconds int) (*RedisMetadataCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("replicastore: connecting to redis at %s: %w", address, err)
	}
	return &RedisMetadataCache{client: client, ttl: time.Duration(ttlSeconds) * time.Second}, nil
}

func cacheKey(blobID string) string {
	return "message_info:" + blobID
}

// Get implements MetadataCache.
func (c *RedisMetadataCache) Get(ctx context.Context, blobID string) (*wire.MessageInfo, bool) {
	data, err := c.client.Get(ctx, cacheKey(blobID)).Bytes()
	if err != nil {
		return nil, false
	}
	var info wire.MessageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, false
	}
	return &info, true
}

// Set implements MetadataCache.
func (c *RedisMetadataCache) Set(ctx context.Context, info wire.MessageInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(info.BlobID), data, c.ttl)
}

// Invalidate implements MetadataCache.
func (c *RedisMetadataCache) Invalidate(ctx context.Context, blobID string) {
	c.client.Del(ctx, cacheKey(blobID))
}

// Close releases the underlying Redis client.
func (c *RedisMetadataCache) Close() error {
	return c.client.Close()
}
