package cache

import (
	"fmt"
	"strings"

	"cdi-tracker/internal/config"
	interfaces "cdi-tracker/internal/interfaces/infrastructure"
)

// New picks the implementation named by cache.type.
func New(cfg config.CacheConfig) (interfaces.CacheService, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return NewNoopCache(), nil
	case "redis":
		return NewRedisCache(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), cfg.Password, cfg.DB), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
