package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tinytales/internal/models"
)

// SegmentCache stores speculatively generated segments keyed by the choice
// that would produce them. A cache miss is never an error.
type SegmentCache interface {
	Get(ctx context.Context, storyID uuid.UUID, segmentIndex, choiceIndex int) (*models.GeneratedSegment, bool)
	Set(ctx context.Context, storyID uuid.UUID, segmentIndex, choiceIndex int, seg *models.GeneratedSegment) error
	InvalidateSegment(ctx context.Context, storyID uuid.UUID, segmentIndex int) error
}

type redisSegmentCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSegmentCache builds the prefetch cache on an established redis
// client.
func NewRedisSegmentCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) SegmentCache {
	return &redisSegmentCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("PrefetchCache"),
	}
}

func prefetchKey(storyID uuid.UUID, segmentIndex, choiceIndex int) string {
	return fmt.Sprintf("tinytales:prefetch:%s:%d:%d", storyID, segmentIndex, choiceIndex)
}

func (c *redisSegmentCache) Get(ctx context.Context, storyID uuid.UUID, segmentIndex, choiceIndex int) (*models.GeneratedSegment, bool) {
	key := prefetchKey(storyID, segmentIndex, choiceIndex)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Prefetch cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var seg models.GeneratedSegment
	if err := json.Unmarshal(data, &seg); err != nil {
		c.logger.Warn("Prefetch cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return &seg, true
}

func (c *redisSegmentCache) Set(ctx context.Context, storyID uuid.UUID, segmentIndex, choiceIndex int, seg *models.GeneratedSegment) error {
	data, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("failed to marshal prefetched segment: %w", err)
	}
	key := prefetchKey(storyID, segmentIndex, choiceIndex)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store prefetched segment: %w", err)
	}
	return nil
}

func (c *redisSegmentCache) InvalidateSegment(ctx context.Context, storyID uuid.UUID, segmentIndex int) error {
	// Two branches per segment, always.
	keys := []string{
		prefetchKey(storyID, segmentIndex, 0),
		prefetchKey(storyID, segmentIndex, 1),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate prefetched segments: %w", err)
	}
	return nil
}

// NopSegmentCache disables prefetching.
type NopSegmentCache struct{}

func (NopSegmentCache) Get(context.Context, uuid.UUID, int, int) (*models.GeneratedSegment, bool) {
	return nil, false
}

func (NopSegmentCache) Set(context.Context, uuid.UUID, int, int, *models.GeneratedSegment) error {
	return nil
}

func (NopSegmentCache) InvalidateSegment(context.Context, uuid.UUID, int) error {
	return nil
}
