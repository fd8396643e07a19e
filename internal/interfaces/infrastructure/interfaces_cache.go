package interfaces

import (
	"context"
	"time"
)

// CacheService stores serialized read models. Get reports ok=false on a miss.
type CacheService interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	Health(ctx context.Context) error
	Close() error
}
