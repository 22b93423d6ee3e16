package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/txflow/logger"
	"go.uber.org/zap"
)

const scanBatch = 200

var _ Cache = new(RedisStore)

// RedisStore shares cached reads between instances. Keys are stored under the namespace.
type RedisStore struct {
	redisClient rd.UniversalClient
	namespace   string
	defaultTTL  time.Duration
}

func NewRedisStore(client rd.UniversalClient, namespace string, defaultTTL time.Duration) *RedisStore {
	return &RedisStore{
		redisClient: client,
		namespace:   namespace,
		defaultTTL:  defaultTTL,
	}
}

func (rs *RedisStore) key(k string) string {
	return fmt.Sprintf("%s:CACHE:%s", rs.namespace, k)
}

func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := rs.redisClient.Get(ctx, rs.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (rs *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rs.defaultTTL
	}
	return rs.redisClient.Set(ctx, rs.key(key), value, ttl).Err()
}

func (rs *RedisStore) Invalidate(ctx context.Context, pattern string) error {
	if !isGlob(pattern) {
		return rs.redisClient.Del(ctx, rs.key(pattern)).Err()
	}
	var cursor uint64
	removed := 0
	for {
		keys, next, err := rs.redisClient.Scan(ctx, cursor, rs.key(pattern), scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := rs.redisClient.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete %s: %w", strings.Join(keys, ","), err)
			}
			removed += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	logger.Debug("invalidated cache pattern", zap.String("pattern", pattern), zap.Int("removed", removed))
	return nil
}
