// Package cache provides the key/value cache used for marketplace data.
//
// The catalog client stores the full module list under one well-known key
// with a TTL. Backends implement [Cache]:
//
//   - [FileCache]: JSON envelopes on disk, for the CLI
//   - [MemoryCache]: process-local map, with an injectable clock for tests
//   - [RedisCache]: shared between processes and hosts
//   - [NullCache]: caching disabled
//
// [Scoped] prefixes keys so several installations can share one backend.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
//
// Get reports a miss as (nil, false, nil); an expired entry is a miss.
// A ttl of zero on Set means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clock returns the current time. Backends that evaluate expiry themselves
// accept one so tests can move time forward.
type Clock func() time.Time

// Option configures a local cache backend.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
