package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const alertVersionKey = "stock:alerts:version"

// AlertCache caches promotion and near-expiry snapshots in Redis for the
// pricing layer, which polls them far more often than the ledger changes. A
// version counter is bumped on every ledger mutation so a stale flag can never
// be served. With no Redis client the cache degrades to a pass-through.
type AlertCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAlertCache instantiates the cache helper.
func NewAlertCache(client *redis.Client, ttl time.Duration) *AlertCache {
	return &AlertCache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *AlertCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, alertVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, alertVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates every cached snapshot by advancing the version.
func (c *AlertCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, alertVersionKey).Err()
}

// BuildKey composes a cache key with the current version.
func (c *AlertCache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchLots loads a cached lot snapshot or populates it from the loader.
func (c *AlertCache) FetchLots(ctx context.Context, key string, loader func() []Lot) ([]Lot, error) {
	if loader == nil {
		return nil, errors.New("stock: alert cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(), nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var lots []Lot
		if err := json.Unmarshal(payload, &lots); err != nil {
			return nil, err
		}
		return lots, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	lots := loader()
	raw, err := json.Marshal(lots)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return lots, nil
}
