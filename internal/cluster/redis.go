package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

// DefaultKeyPrefix namespaces member keys.
const DefaultKeyPrefix = "matmul:member:"

// RedisConfig configures a RedisMembership.
type RedisConfig struct {
	KeyPrefix       string
	LivenessTimeout time.Duration
	// PollInterval drives Watch, which diffs successive snapshots.
	PollInterval time.Duration
}

// RedisMembership stores one key per member with a TTL equal to the liveness timeout.
// A heartbeat refreshes the TTL. Key expiry is a leave.
type RedisMembership struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	poll    time.Duration
}

// NewRedisMembership creates a Redis-backed membership over client.
func NewRedisMembership(client redis.UniversalClient, cfg RedisConfig) *RedisMembership {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = DefaultLivenessTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &RedisMembership{
		client:  client,
		prefix:  cfg.KeyPrefix,
		timeout: cfg.LivenessTimeout,
		poll:    cfg.PollInterval,
	}
}

func (r *RedisMembership) key(id string) string {
	return r.prefix + id
}

// Register implements Membership.
func (r *RedisMembership) Register(ctx context.Context, member *types.MemberInfo) error {
	if err := validateMember(member); err != nil {
		return err
	}
	info := *member
	if info.JoinedAt.IsZero() {
		info.JoinedAt = time.Now()
	}
	data, err := sonic.Marshal(&info)
	if err != nil {
		return fmt.Errorf("failed to encode member: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(info.ID), data, r.timeout).Result()
	if err != nil {
		return fmt.Errorf("failed to register member %s: %w", info.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberExists, info.ID)
	}
	logger.Info("member joined", zap.String("member", info.ID), zap.String("address", info.Address))
	return nil
}

// Heartbeat implements Membership.
func (r *RedisMembership) Heartbeat(ctx context.Context, memberID string) error {
	ok, err := r.client.Expire(ctx, r.key(memberID), r.timeout).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh member %s: %w", memberID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	return nil
}

// Leave implements Membership.
func (r *RedisMembership) Leave(ctx context.Context, memberID string) error {
	n, err := r.client.Del(ctx, r.key(memberID)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove member %s: %w", memberID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	logger.Info("member left", zap.String("member", memberID))
	return nil
}

// Members implements Membership.
func (r *RedisMembership) Members(ctx context.Context) ([]*types.MemberInfo, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []*types.MemberInfo{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	result := make([]*types.MemberInfo, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var info types.MemberInfo
		if err := sonic.UnmarshalString(s, &info); err != nil {
			logger.Warn("skipping undecodable member", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		result = append(result, &info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Size implements Membership.
func (r *RedisMembership) Size(ctx context.Context) (int, error) {
	members, err := r.Members(ctx)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// Watch implements Membership by polling. Disappeared keys are reported as expired
// because Redis does not distinguish a Leave from a TTL expiry after the fact.
func (r *RedisMembership) Watch(ctx context.Context) (<-chan *types.MemberEvent, error) {
	current, err := r.Members(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan *types.MemberEvent, watchBuffer)

	go func() {
		defer close(ch)
		known := indexMembers(current)
		ticker := time.NewTicker(r.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				next, err := r.Members(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn("membership poll failed", zap.Error(err))
					}
					continue
				}
				seen := indexMembers(next)
				for id, member := range seen {
					if _, ok := known[id]; !ok {
						emit(ctx, ch, &types.MemberEvent{Type: types.MemberEventJoined, MemberID: id, Member: member})
					}
				}
				for id, member := range known {
					if _, ok := seen[id]; !ok {
						emit(ctx, ch, &types.MemberEvent{Type: types.MemberEventExpired, MemberID: id, Member: member})
					}
				}
				known = seen
			}
		}
	}()
	return ch, nil
}

func (r *RedisMembership) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan members: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func indexMembers(members []*types.MemberInfo) map[string]*types.MemberInfo {
	out := make(map[string]*types.MemberInfo, len(members))
	for _, m := range members {
		out[m.ID] = m
	}
	return out
}

func emit(ctx context.Context, ch chan<- *types.MemberEvent, event *types.MemberEvent) {
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}
