package cache

import (
	"context"
	"time"

	"github.com/mohitkumar/txflow/logger"
	c "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var _ Cache = new(LocalStore)

// LocalStore is an in-process cache for a single instance deployment.
type LocalStore struct {
	cache *c.Cache
}

func NewLocalStore(defaultTTL time.Duration) *LocalStore {
	return &LocalStore{
		cache: c.New(defaultTTL, 10*time.Minute),
	}
}

func (ls *LocalStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found := ls.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	return value.([]byte), true, nil
}

func (ls *LocalStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.DefaultExpiration
	}
	ls.cache.Set(key, value, ttl)
	return nil
}

func (ls *LocalStore) Invalidate(ctx context.Context, pattern string) error {
	if !isGlob(pattern) {
		ls.cache.Delete(pattern)
		logger.Debug("invalidated cache key", zap.String("key", pattern))
		return nil
	}
	removed := 0
	for key := range ls.cache.Items() {
		if matches(pattern, key) {
			ls.cache.Delete(key)
			removed++
		}
	}
	logger.Debug("invalidated cache pattern", zap.String("pattern", pattern), zap.Int("removed", removed))
	return nil
}
