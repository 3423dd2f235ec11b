package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestAlertCache(t *testing.T) *AlertCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAlertCache(client, time.Minute)
}

func TestAlertCacheServesSnapshotUntilBump(t *testing.T) {
	cache := newTestAlertCache(t)
	ctx := context.Background()

	loads := 0
	loader := func() []Lot {
		loads++
		return []Lot{{ID: "lot-1", IngredientID: "lait", Quantity: decimal.NewFromInt(3)}}
	}

	key, err := cache.BuildKey(ctx, "stock:promotions", "resto-1", "2025-06-10")
	require.NoError(t, err)

	first, err := cache.FetchLots(ctx, key, loader)
	require.NoError(t, err)
	second, err := cache.FetchLots(ctx, key, loader)
	require.NoError(t, err)

	require.Equal(t, 1, loads)
	require.Len(t, first, 1)
	require.Equal(t, first[0].ID, second[0].ID)
	require.True(t, second[0].Quantity.Equal(decimal.NewFromInt(3)))
}

func TestAlertCacheBumpInvalidates(t *testing.T) {
	cache := newTestAlertCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "stock:promotions", "resto-1", "2025-06-10")
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	after, err := cache.BuildKey(ctx, "stock:promotions", "resto-1", "2025-06-10")
	require.NoError(t, err)

	require.NotEqual(t, before, after)
}

func TestAlertCacheWithoutClientPassesThrough(t *testing.T) {
	cache := NewAlertCache(nil, 0)
	ctx := context.Background()

	loads := 0
	loader := func() []Lot {
		loads++
		return nil
	}

	key, err := cache.BuildKey(ctx, "stock:near-expiry", "resto-1", "2025-06-10", "3")
	require.NoError(t, err)
	_, err = cache.FetchLots(ctx, key, loader)
	require.NoError(t, err)
	_, err = cache.FetchLots(ctx, key, loader)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
	require.NoError(t, cache.Bump(ctx))
}
