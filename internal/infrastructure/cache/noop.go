package cache

import (
	"context"
	"time"

	interfaces "cdi-tracker/internal/interfaces/infrastructure"
)

// NoopCache misses on every read. It is the default when cache.type is none.
type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (NoopCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (NoopCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return nil
}

func (NoopCache) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (NoopCache) Health(ctx context.Context) error {
	return nil
}

func (NoopCache) Close() error {
	return nil
}

var _ interfaces.CacheService = NoopCache{}
