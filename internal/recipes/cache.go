package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OwnerCache кэширует OwnerOf в Redis. Владелец рецепта не меняется,
// поэтому TTL нужен только для вытеснения. Сбой Redis не ломает запрос:
// идём в next.
type OwnerCache struct {
	rdb    *redis.Client
	next   OwnerLookup
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

var _ OwnerLookup = (*OwnerCache)(nil)

// NewOwnerCache создаёт кэш поверх next.
// Если prefix пустой — используется "recipes:owner:".
func NewOwnerCache(rdb *redis.Client, next OwnerLookup, prefix string, ttl time.Duration, log *slog.Logger) *OwnerCache {
	if prefix == "" {
		prefix = "recipes:owner:"
	}

	if log == nil {
		log = slog.Default()
	}

	return &OwnerCache{rdb: rdb, next: next, prefix: prefix, ttl: ttl, log: log}
}

func (c *OwnerCache) key(recipeID uuid.UUID) string { return c.prefix + recipeID.String() }

// OwnerOf возвращает владельца из кэша или из next.
func (c *OwnerCache) OwnerOf(ctx context.Context, recipeID uuid.UUID) (uuid.UUID, error) {
	const op = "recipes/OwnerCache/OwnerOf"

	key := c.key(recipeID)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if owner, perr := uuid.Parse(val); perr == nil {
			return owner, nil
		}
		c.log.Warn("owner_cache_bad_value", slog.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("owner_cache_get_failed", slog.String("key", key), slog.String("err", err.Error()))
	}

	owner, err := c.next.OwnerOf(ctx, recipeID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.rdb.Set(ctx, key, owner.String(), c.ttl).Err(); err != nil {
		c.log.Warn("owner_cache_set_failed", slog.String("key", key), slog.String("err", err.Error()))
	}

	return owner, nil
}
