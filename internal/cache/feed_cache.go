// Package cache keeps rendered global-feed pages in Redis.
//
// Keys embed a generation counter. Invalidate bumps the counter with INCR,
// so every page cached under an older generation becomes unreachable at
// once and simply expires.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const generationKey = "feed:generation"

type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	return &FeedCache{rdb: rdb, ttl: ttl}
}

// Connect builds a client and verifies it answers PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (c *FeedCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func pageKey(gen int64, page int) string {
	return fmt.Sprintf("feed:%d:page:%d", gen, page)
}

// GetPage returns the cached page and true on a hit.
func (c *FeedCache) GetPage(ctx context.Context, page int) ([]models.Report, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.rdb.Get(ctx, pageKey(gen, page)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var reports []models.Report
	if err := json.Unmarshal(raw, &reports); err != nil {
		return nil, false, fmt.Errorf("decode cached page %d: %w", page, err)
	}
	return reports, true, nil
}

// SetPage stores reports under the generation observed before they were
// loaded, so a page read across an invalidation is never served as fresh.
func (c *FeedCache) SetPage(ctx context.Context, gen int64, page int, reports []models.Report) error {
	raw, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, pageKey(gen, page), raw, c.ttl).Err()
}

// Generation exposes the current generation for use with SetPage.
func (c *FeedCache) Generation(ctx context.Context) (int64, error) {
	return c.generation(ctx)
}

func (c *FeedCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}

func (c *FeedCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
