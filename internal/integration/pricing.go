package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/freshledger/freshledger/internal/stock"
)

// DefaultDiscountRate is applied to promotion-flagged lots when no rate is
// configured, matching a 30% clearance markdown.
var DefaultDiscountRate = decimal.RequireFromString("0.30")

// PricingHooks turns daily-batch promotion flags into published clearance
// prices that a menu or POS layer can pick up.
type PricingHooks struct {
	client       *redis.Client
	logger       *slog.Logger
	discountRate decimal.Decimal
	ttl          time.Duration
}

// NewPricingHooks constructs the pricing integration. A nil client disables
// publication; events are still accepted so ledger processing never blocks on
// pricing availability.
func NewPricingHooks(client *redis.Client, logger *slog.Logger, discountRate decimal.Decimal, ttl time.Duration) *PricingHooks {
	if discountRate.IsZero() {
		discountRate = DefaultDiscountRate
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &PricingHooks{client: client, logger: logger, discountRate: discountRate, ttl: ttl}
}

// HandleDayProcessed publishes a clearance price per promotion candidate under
// pricing:promos:<restaurant>, keyed by lot ID.
func (h *PricingHooks) HandleDayProcessed(ctx context.Context, evt stock.DayProcessedEvent) error {
	if h == nil || h.client == nil {
		return nil
	}
	key := promoKey(evt.RestaurantID)
	if len(evt.PromotionCandidates) == 0 {
		if err := h.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("integration: clear promotions: %w", err)
		}
		return nil
	}

	fields := make(map[string]interface{}, len(evt.PromotionCandidates))
	for _, lot := range evt.PromotionCandidates {
		price := stock.PromotionPrice(lot.UnitCostHT, h.discountRate)
		fields[lot.ID] = price.String()
	}

	pipe := h.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("integration: publish promotions: %w", err)
	}

	if h.logger != nil {
		h.logger.Info("published clearance prices",
			slog.String("restaurant_id", evt.RestaurantID),
			slog.Int("lots", len(evt.PromotionCandidates)),
		)
	}
	return nil
}

// PromotionPrices returns the published clearance prices for a restaurant,
// keyed by lot ID.
func (h *PricingHooks) PromotionPrices(ctx context.Context, restaurantID string) (map[string]decimal.Decimal, error) {
	if h == nil || h.client == nil {
		return nil, nil
	}
	raw, err := h.client.HGetAll(ctx, promoKey(restaurantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("integration: load promotions: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(raw))
	for lotID, value := range raw {
		price, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("integration: corrupt price for lot %s: %w", lotID, err)
		}
		prices[lotID] = price
	}
	return prices, nil
}

func promoKey(restaurantID string) string {
	return "pricing:promos:" + restaurantID
}
