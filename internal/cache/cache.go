// Package cache keeps a TTL'd copy of the upstream payload in Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

const DefaultKey = "powersense:charts:payload"

type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// ReadThrough serves the payload from Redis while it is fresh and from the
// wrapped source otherwise. Redis failures fall through to the source;
// source failures are never cached.
type ReadThrough struct {
	rdb     redis.Cmdable
	next    Source
	key     string
	ttl     time.Duration
	metrics *telemetry.Metrics
}

func New(rdb redis.Cmdable, next Source, key string, ttl time.Duration, m *telemetry.Metrics) *ReadThrough {
	if key == "" {
		key = DefaultKey
	}
	return &ReadThrough{rdb: rdb, next: next, key: key, ttl: ttl, metrics: m}
}

func (c *ReadThrough) Fetch(ctx context.Context) ([]byte, error) {
	b, err := c.rdb.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		c.metrics.CacheLookup("hit")
		return b, nil
	case errors.Is(err, redis.Nil):
		c.metrics.CacheLookup("miss")
	default:
		c.metrics.CacheLookup("error")
		log.Warn().Err(err).Str("key", c.key).Msg("payload cache read failed")
	}

	b, err = c.next.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("payload cache write failed")
	}
	return b, nil
}

// Invalidate drops the cached payload so the next fetch goes upstream.
func (c *ReadThrough) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
