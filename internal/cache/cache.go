package cache

import (
	"context"
	"time"

	"gemtopup/backend/internal/domain"
)

type StatsCache interface {
	Get(ctx context.Context, key string) (*domain.Stats, bool, error)
	Set(ctx context.Context, key string, value *domain.Stats, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ string) (*domain.Stats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ string, _ *domain.Stats, _ time.Duration) error {
	return nil
}

func (NoopStatsCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
