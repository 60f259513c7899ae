package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/emrgen/revision/internal/model"
	redis "github.com/redis/go-redis/v9"
)

var _ StatsCache = (*RedisStatsCache)(nil)

type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatsCache(addr, password string, ttl time.Duration) *RedisStatsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // Use default DB
		Protocol: 2, // Connection protocol
	})

	return &RedisStatsCache{client: client, ttl: ttl}
}

// Ping checks that the redis server is reachable.
func (r *RedisStatsCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStatsCache) GetStats(ctx context.Context, proposalID string) (*model.VersionStats, error) {
	res := r.client.Get(ctx, statsKey(proposalID))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	stats := &model.VersionStats{}
	if err := json.Unmarshal(buf, stats); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *RedisStatsCache) SetStats(ctx context.Context, proposalID string, stats *model.VersionStats) error {
	marshal, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, statsKey(proposalID), marshal, r.ttl).Err()
}

func (r *RedisStatsCache) InvalidateStats(ctx context.Context, proposalID string) error {
	return r.client.Del(ctx, statsKey(proposalID)).Err()
}

func (r *RedisStatsCache) Close() error {
	return r.client.Close()
}
