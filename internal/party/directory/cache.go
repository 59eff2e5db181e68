package directory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"gridconsent/internal/party"
	"gridconsent/pkg/platform/sentinel"
)

const cacheKeyPrefix = "persondir:"

// KV is the narrow key/value surface the cache needs. Satisfied by RedisKV in
// production and by map fakes in tests.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cache is a read-through decorator in front of a Directory. Entries are keyed
// by a SHA-256 of the identity number so the number itself never lands in the
// cache backend. Cache failures are fail-open: the inner directory is the
// source of truth.
type Cache struct {
	next party.Directory
	kv   KV
	ttl  time.Duration
	log  *slog.Logger
}

// NewCache wraps next with a read-through cache.
func NewCache(next party.Directory, kv KV, ttl time.Duration, log *slog.Logger) *Cache {
	return &Cache{next: next, kv: kv, ttl: ttl, log: log}
}

func (c *Cache) FindOrCreateByNIN(ctx context.Context, nin string) (string, error) {
	key := cacheKey(nin)

	cached, err := c.kv.Get(ctx, key)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		c.log.WarnContext(ctx, "person directory cache read failed", "error", err)
	}

	internalID, err := c.next.FindOrCreateByNIN(ctx, nin)
	if err != nil {
		return "", err
	}

	if err := c.kv.Set(ctx, key, internalID, c.ttl); err != nil {
		c.log.WarnContext(ctx, "person directory cache write failed", "error", err)
	}
	return internalID, nil
}

func cacheKey(nin string) string {
	sum := sha256.Sum256([]byte(nin))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// RedisKV adapts a redis client to the KV surface.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", sentinel.ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}
