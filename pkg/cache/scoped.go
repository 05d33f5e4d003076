package cache

import (
	"context"
	"time"
)

// ScopedCache prefixes every key before delegating to an inner cache.
// Installations sharing one Redis use it to keep their catalogs apart:
//
//	shared, _ := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: "localhost:6379"})
//	c := cache.Scoped(shared, "install:"+installID+":")
type ScopedCache struct {
	inner  Cache
	prefix string
}

// Scoped wraps inner with a key prefix. A nil inner becomes a [NullCache].
// Scoping an already scoped cache concatenates the prefixes.
func Scoped(inner Cache, prefix string) Cache {
	if inner == nil {
		inner = NewNullCache()
	}
	if s, ok := inner.(*ScopedCache); ok {
		return &ScopedCache{inner: s.inner, prefix: s.prefix + prefix}
	}
	return &ScopedCache{inner: inner, prefix: prefix}
}

// Prefix returns the full key prefix.
func (s *ScopedCache) Prefix() string { return s.prefix }

func (s *ScopedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *ScopedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.prefix+key, data, ttl)
}

func (s *ScopedCache) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Close closes the inner cache.
func (s *ScopedCache) Close() error {
	return s.inner.Close()
}

var _ Cache = (*ScopedCache)(nil)
