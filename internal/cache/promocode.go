package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aubergehq/promo-service/internal/domain"
)

const (
	promoCodeKeyPrefix = "promo:code:"

	// Short TTL: the verification path tolerates briefly stale reads, but
	// the redemption count must never be served from here for cap checks.
	defaultTTL = 30 * time.Second
)

// PromoCodeCache is a read-through Redis cache for promo code lookups by
// code. It is best-effort: every failure degrades to a miss.
type PromoCodeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewPromoCodeCache creates a promo code cache with the default TTL.
func NewPromoCodeCache(client *redis.Client, logger *slog.Logger) *PromoCodeCache {
	return &PromoCodeCache{
		client: client,
		ttl:    defaultTTL,
		logger: logger,
	}
}

func promoCodeKey(code string) string {
	return promoCodeKeyPrefix + code
}

// Get returns the cached promo code for the given normalized code, or nil
// on a miss. Errors are logged and reported as misses.
func (c *PromoCodeCache) Get(ctx context.Context, code string) *domain.PromoCode {
	data, err := c.client.Get(ctx, promoCodeKey(code)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "promo code cache get failed",
				slog.String("code", code),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var promo domain.PromoCode
	if err := json.Unmarshal(data, &promo); err != nil {
		c.logger.WarnContext(ctx, "promo code cache entry corrupt, dropping",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		c.client.Del(ctx, promoCodeKey(code))
		return nil
	}

	return &promo
}

// Set stores a promo code under its code key.
func (c *PromoCodeCache) Set(ctx context.Context, promo *domain.PromoCode) {
	data, err := json.Marshal(promo)
	if err != nil {
		c.logger.WarnContext(ctx, "promo code cache marshal failed",
			slog.String("code", promo.Code),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.client.Set(ctx, promoCodeKey(promo.Code), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "promo code cache set failed",
			slog.String("code", promo.Code),
			slog.String("error", err.Error()),
		)
	}
}

// Invalidate removes the cached entry for the given code. Call it on every
// write that can change the code's verification outcome.
func (c *PromoCodeCache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, promoCodeKey(code)).Err(); err != nil {
		return fmt.Errorf("invalidate promo code cache: %w", err)
	}
	return nil
}
