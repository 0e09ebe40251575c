package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// DefaultKeyPrefix namespaces result keys when the client has none.
const DefaultKeyPrefix = "adsorpnet:"

const scanBatch = 100

// ResultCache stores stage predictions as JSON strings under
// <prefix>result:<stage>:<fingerprint>. Backend failures are logged and
// reported as misses.
type ResultCache struct {
	client *Client
	logger logging.Logger
	prefix string
	group  singleflight.Group

	hits, misses, errs atomic.Int64
}

type CacheOption func(*ResultCache)

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) CacheOption {
	return func(c *ResultCache) { c.prefix = prefix }
}

// NewResultCache returns a cache over client.
func NewResultCache(client *Client, log logging.Logger, opts ...CacheOption) *ResultCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ResultCache{
		client: client,
		logger: log.Named("result_cache"),
		prefix: client.KeyPrefix(),
	}
	if c.prefix == "" {
		c.prefix = DefaultKeyPrefix
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResultCache) key(stage synthesis.Stage, fingerprint string) string {
	return c.prefix + "result:" + predictor.EntryKey(stage, fingerprint)
}

// Get reads one entry. Concurrent reads of the same key share one round
// trip.
func (c *ResultCache) Get(ctx context.Context, key string, stage synthesis.Stage) (*predictor.CachedResult, bool) {
	full := c.key(stage, key)
	v, err, _ := c.group.Do(full, func() (interface{}, error) {
		return c.client.Get(ctx, full).Bytes()
	})
	if stderrors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.errs.Add(1)
		c.misses.Add(1)
		c.logger.Warn("result cache read failed", logging.String("key", full), logging.Err(err))
		return nil, false
	}

	var out predictor.CachedResult
	if err := json.Unmarshal(v.([]byte), &out); err != nil {
		c.errs.Add(1)
		c.misses.Add(1)
		c.logger.Warn("discarding undecodable cache entry", logging.String("key", full), logging.Err(err))
		return nil, false
	}
	c.hits.Add(1)
	return &out, true
}

// Put writes one entry. A non-positive ttl stores it without expiry.
func (c *ResultCache) Put(ctx context.Context, key string, stage synthesis.Stage, value *predictor.CachedResult, ttl time.Duration) {
	if value == nil {
		return
	}
	full := c.key(stage, key)
	data, err := json.Marshal(value)
	if err != nil {
		c.errs.Add(1)
		c.logger.Warn("result cache encode failed", logging.String("key", full), logging.Err(err))
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, full, data, ttl).Err(); err != nil {
		c.errs.Add(1)
		c.logger.Warn("result cache write failed", logging.String("key", full), logging.Err(err))
	}
}

// Clear deletes every result key under the prefix using SCAN, so other data
// in the same database is untouched.
func (c *ResultCache) Clear(ctx context.Context) error {
	deleted, err := c.scan(ctx, func(keys []string) error {
		return c.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to clear result cache").
			WithDetail("prefix=" + c.prefix)
	}
	c.logger.Info("result cache cleared", logging.Int64("deleted", deleted))
	return nil
}

// Size counts the stored result keys.
func (c *ResultCache) Size(ctx context.Context) (int64, error) {
	n, err := c.scan(ctx, func([]string) error { return nil })
	if err != nil {
		return n, errors.Wrap(err, errors.ErrCodeCacheError, "failed to count result keys")
	}
	return n, nil
}

func (c *ResultCache) scan(ctx context.Context, visit func(keys []string) error) (int64, error) {
	var total int64
	var cursor uint64
	match := c.prefix + "result:*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			if err := visit(keys); err != nil {
				return total, err
			}
			total += int64(len(keys))
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// Stats reports this process's hit and miss counts. Entries is not tracked;
// use Size.
func (c *ResultCache) Stats() predictor.CacheStats {
	return predictor.CacheStats{
		Backend: "redis",
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Errors returns the number of backend failures seen so far.
func (c *ResultCache) Errors() int64 { return c.errs.Load() }

// Ping checks the connection.
func (c *ResultCache) Ping(ctx context.Context) error { return c.client.Ping(ctx) }

var _ predictor.ResultCache = (*ResultCache)(nil)
