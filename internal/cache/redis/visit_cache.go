// Package redis remembers crawled discovery candidates across runs so a page seen
// recently is not fetched again until its TTL expires.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

const keyPrefix = "harvester:visited:"

// Config selects the Redis server and key lifetime.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// client is the subset of *redis.Client the cache needs.
type client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// VisitCache implements board.VisitCache on Redis keys with a TTL.
type VisitCache struct {
	client client
	ttl    time.Duration
	logger *zap.Logger
}

var _ board.VisitCache = (*VisitCache)(nil)

// New connects and pings Redis. Callers treat an error as "run without the cache".
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*VisitCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return newWithClient(rdb, cfg.TTL, logger), nil
}

func newWithClient(c client, ttl time.Duration, logger *zap.Logger) *VisitCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitCache{client: c, ttl: ttl, logger: logger.Named("visit_cache")}
}

// Seen reports whether pageURL was visited within the TTL.
func (v *VisitCache) Seen(ctx context.Context, pageURL string) (bool, error) {
	n, err := v.client.Exists(ctx, keyPrefix+pageURL).Result()
	if err != nil {
		return false, fmt.Errorf("check visited %s: %w", pageURL, err)
	}
	return n > 0, nil
}

// MarkSeen records a visit to pageURL.
func (v *VisitCache) MarkSeen(ctx context.Context, pageURL string) error {
	if err := v.client.Set(ctx, keyPrefix+pageURL, time.Now().UTC().Format(time.RFC3339), v.ttl).Err(); err != nil {
		return fmt.Errorf("mark visited %s: %w", pageURL, err)
	}
	return nil
}

// Ping checks connectivity; used by readiness probes.
func (v *VisitCache) Ping(ctx context.Context) error {
	if err := v.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (v *VisitCache) Close() error {
	if err := v.client.Close(); err != nil {
		v.logger.Warn("close redis", zap.Error(err))
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
