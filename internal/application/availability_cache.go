package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	availableFleetKey = "fleet:available"
	availableFleetTTL = 30 * time.Second
)

// AvailabilityCache is a read-through Redis cache for the available-fleet
// listing, the hottest read in the service. Cache failures degrade to the
// database: every method swallows Redis errors after logging them.
type AvailabilityCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewAvailabilityCache creates a cache backed by the given Redis client. A nil
// client disables caching entirely.
func NewAvailabilityCache(client *redis.Client, logger *zap.Logger) *AvailabilityCache {
	return &AvailabilityCache{client: client, logger: logger}
}

// GetAvailableFleet returns the cached listing, or ok=false on miss or error.
func (c *AvailabilityCache) GetAvailableFleet(ctx context.Context) ([]VehicleDTO, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, availableFleetKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("availability cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var dtos []VehicleDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		c.logger.Warn("availability cache entry corrupt", zap.Error(err))
		c.Invalidate(ctx)
		return nil, false
	}
	return dtos, true
}

// SetAvailableFleet stores the listing with a short TTL.
func (c *AvailabilityCache) SetAvailableFleet(ctx context.Context, dtos []VehicleDTO) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(dtos)
	if err != nil {
		c.logger.Warn("availability cache marshal failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, availableFleetKey, raw, availableFleetTTL).Err(); err != nil {
		c.logger.Warn("availability cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached listing. Called after every availability flip so
// readers never see a vehicle that just went out.
func (c *AvailabilityCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, availableFleetKey).Err(); err != nil {
		c.logger.Warn("availability cache invalidation failed", zap.Error(err))
	}
}
