// Package cache keeps read-mostly routing data in Redis in front of Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
)

const mappingKeyPrefix = "mappings:category:"

// MappingKey is the cache key for the active mappings of category.
func MappingKey(category string) string {
	return mappingKeyPrefix + strings.ToLower(strings.TrimSpace(category))
}

// MappingCache decorates a MappingRepository. Category lookups are served
// from Redis for ttl; writes delete the affected category keys. Any Redis
// failure falls through to the wrapped repository.
type MappingCache struct {
	next   repository.MappingRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewMappingCache returns next unchanged when caching is disabled.
func NewMappingCache(next repository.MappingRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) repository.MappingRepository {
	if client == nil || ttl <= 0 {
		return next
	}
	return &MappingCache{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *MappingCache) ListActiveForCategory(ctx context.Context, category string) ([]domain.StaffMapping, error) {
	key := MappingKey(category)
	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached []domain.StaffMapping
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding unreadable mapping cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("mapping cache read failed", zap.String("key", key), zap.Error(err))
	}

	mappings, err := c.next.ListActiveForCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(mappings)
	if err != nil {
		return mappings, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("mapping cache write failed", zap.String("key", key), zap.Error(err))
	}
	return mappings, nil
}

func (c *MappingCache) GetByID(ctx context.Context, id string) (*domain.StaffMapping, error) {
	return c.next.GetByID(ctx, id)
}

func (c *MappingCache) List(ctx context.Context, filter repository.MappingFilter) ([]domain.StaffMapping, error) {
	return c.next.List(ctx, filter)
}

func (c *MappingCache) Create(ctx context.Context, mapping *domain.StaffMapping) error {
	if err := c.next.Create(ctx, mapping); err != nil {
		return err
	}
	c.invalidate(ctx, mapping.Category)
	return nil
}

func (c *MappingCache) Update(ctx context.Context, mapping *domain.StaffMapping) error {
	previous, err := c.next.GetByID(ctx, mapping.ID)
	if err != nil {
		return err
	}
	if err := c.next.Update(ctx, mapping); err != nil {
		return err
	}
	c.invalidate(ctx, previous.Category, mapping.Category)
	return nil
}

func (c *MappingCache) Deactivate(ctx context.Context, id string) (*domain.StaffMapping, error) {
	mapping, err := c.next.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, mapping.Category)
	return mapping, nil
}

func (c *MappingCache) invalidate(ctx context.Context, categories ...string) {
	keys := make([]string, 0, len(categories))
	for _, category := range categories {
		keys = append(keys, MappingKey(category))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("failed to invalidate mapping cache", zap.Strings("keys", keys), zap.Error(err))
	}
}

var _ repository.MappingRepository = (*MappingCache)(nil)
