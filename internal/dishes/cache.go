package dishes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-labeling/internal/models"
)

// Lookup is what label-producing code depends on.
type Lookup interface {
	GetByRKCode(ctx context.Context, rkCode string) (*models.Dish, error)
}

// CachedLookup is a redis read-through in front of the sqlite master. Misses
// are cached too, so a dish absent from the export does not hammer the file
// on every webhook.
type CachedLookup struct {
	source Lookup
	redis  *redis.Client
	ttl    time.Duration
}

const cacheMiss = "__miss__"

func NewCachedLookup(source Lookup, client *redis.Client, ttl time.Duration) *CachedLookup {
	return &CachedLookup{source: source, redis: client, ttl: ttl}
}

func cacheKey(rkCode string) string {
	return fmt.Sprintf("dish:%s", rkCode)
}

func (c *CachedLookup) GetByRKCode(ctx context.Context, rkCode string) (*models.Dish, error) {
	key := cacheKey(rkCode)

	val, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		if val == cacheMiss {
			return nil, ErrDishNotFound
		}
		var dish models.Dish
		if jsonErr := json.Unmarshal([]byte(val), &dish); jsonErr == nil {
			return &dish, nil
		}
		// Corrupt cache entry falls through to the source.
	}

	dish, err := c.source.GetByRKCode(ctx, rkCode)
	if errors.Is(err, ErrDishNotFound) {
		c.redis.Set(ctx, key, cacheMiss, c.ttl)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(dish); jsonErr == nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}
	return dish, nil
}

// Invalidate drops one cached dish, for when the export file is refreshed.
func (c *CachedLookup) Invalidate(ctx context.Context, rkCode string) error {
	return c.redis.Del(ctx, cacheKey(rkCode)).Err()
}
