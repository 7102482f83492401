package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

// errMiss is returned by getJSON when the key is absent.
var errMiss = errors.New("cache miss")

type RedisCache struct {
	client redis.UniversalClient
	ttl    config.CacheTTLConfig
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return NewRedisCacheFromClient(client, cfg.TTL, logger), nil
}

func NewRedisCacheFromClient(client redis.UniversalClient, ttl config.CacheTTLConfig, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// InvalidatePattern deletes every key matching the given glob patterns.
// Scan and delete errors are logged and skipped.
func (rc *RedisCache) InvalidatePattern(ctx context.Context, patterns []string) error {
	for _, pattern := range patterns {
		iter := rc.client.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			rc.logger.Warn("cache scan error", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				rc.logger.Warn("cache delete error", zap.Strings("keys", keys), zap.Error(err))
			}
		}
	}
	return nil
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) getJSON(ctx context.Context, key string, dst any) error {
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return errMiss
	}
	if err != nil {
		return fmt.Errorf("cache get: %w", err)
	}

	observability.CacheHits.Inc()
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}

func (rc *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
