package ratelimit

import (
	"net/http"
	"time"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBackend implements a fixed window counter shared across
// instances. The window key expires on its own; a failed round trip
// fails open so redis outages do not take requests down with them.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	period    time.Duration
}

// NewRedisBackend builds the distributed backend.
func NewRedisBackend(cfg config.RateLimitConfig) *RedisBackend {
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "courier:ratelimit:"
	}
	period := cfg.Period
	if period == 0 {
		period = time.Minute
	}
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}),
		keyPrefix: prefix,
		limit:     cfg.Rate,
		period:    period,
	}
}

// Allow implements Backend.
func (b *RedisBackend) Allow(r *http.Request, key string) (bool, time.Duration) {
	ctx := r.Context()
	window := time.Now().Unix() / int64(b.period.Seconds())
	redisKey := b.keyPrefix + key + ":" + time.Unix(window*int64(b.period.Seconds()), 0).UTC().Format("20060102150405")

	pipe := b.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, b.period)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Warn("rate limit backend unavailable, failing open",
			zap.String("key", key),
			zap.Error(err),
		)
		return true, 0
	}

	if incr.Val() > int64(b.limit) {
		remaining := b.period - time.Duration(time.Now().Unix()%int64(b.period.Seconds()))*time.Second
		return false, remaining
	}
	return true, 0
}

// Close releases the redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
