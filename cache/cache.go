// Package cache holds the read-side caches of backend data. Writers never put
// results here, they only invalidate.
package cache

import (
	"context"
	"path"
	"strings"
	"time"
)

type Invalidator interface {
	// Invalidate drops every key matching the glob pattern. Supported wildcards are * and ?.
	Invalidate(ctx context.Context, pattern string) error
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Cache interface {
	Invalidator
	Store
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

func matches(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
