package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func (failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("connection refused")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	svc := NewCacheService(newMemoryCache(), NewMetricsService(), 0, nil, true)
	ctx := context.Background()

	var dest map[string]int
	assert.False(t, svc.Get(ctx, "report:a", &dest))
	svc.Set(ctx, "report:a", map[string]int{"missing": 3}, 0)
	assert.True(t, svc.Get(ctx, "report:a", &dest))
	assert.Equal(t, 3, dest["missing"])

	svc.Invalidate(ctx, completenessCachePattern)
	assert.False(t, svc.Get(ctx, "report:a", &dest))
}

func TestCacheServiceDegradesToMiss(t *testing.T) {
	svc := NewCacheService(failingCache{}, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var dest map[string]int
	assert.False(t, svc.Get(ctx, "k", &dest))
	svc.Set(ctx, "k", 1, 0)
	svc.Invalidate(ctx, "*")

	var disabled *CacheService
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Get(ctx, "k", &dest))
}
