package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"yqhp/matmul-engine/internal/cluster"
)

// Membership backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RedisConfig configures the Redis membership backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// MembershipConfig selects and configures a membership backend.
type MembershipConfig struct {
	Backend         string
	LivenessTimeout time.Duration
	Redis           RedisConfig
}

// BuildMembership creates the configured backend. The returned closer releases
// backend resources and is never nil.
func BuildMembership(ctx context.Context, cfg MembershipConfig) (cluster.Membership, func() error, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		m := cluster.NewInMemoryMembership(cluster.WithLivenessTimeout(cfg.LivenessTimeout))
		return m, m.Close, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		m := cluster.NewRedisMembership(client, cluster.RedisConfig{
			KeyPrefix:       cfg.Redis.KeyPrefix,
			LivenessTimeout: cfg.LivenessTimeout,
		})
		return m, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown membership backend: %s", cfg.Backend)
	}
}
