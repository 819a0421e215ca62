package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/matmul-engine/pkg/types"
)

func setupRedisMembership(t *testing.T, timeout time.Duration) (*RedisMembership, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisMembership(client, RedisConfig{
		KeyPrefix:       "test:member:",
		LivenessTimeout: timeout,
		PollInterval:    10 * time.Millisecond,
	}), mr
}

func TestRedisMembership_RegisterAndLeave(t *testing.T) {
	m, _ := setupRedisMembership(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Register(ctx, newMember(i)))
	}
	size, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	assert.ErrorIs(t, m.Register(ctx, newMember(1)), ErrMemberExists)

	require.NoError(t, m.Leave(ctx, "worker-1"))
	size, err = m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	assert.ErrorIs(t, m.Leave(ctx, "worker-1"), ErrMemberNotFound)
	assert.ErrorIs(t, m.Heartbeat(ctx, "worker-1"), ErrMemberNotFound)

	members, err := m.Members(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "worker-0", members[0].ID)
	assert.Equal(t, "127.0.0.1:9100", members[0].Address)
	assert.False(t, members[0].JoinedAt.IsZero())
}

func TestRedisMembership_TTLExpiry(t *testing.T) {
	m, mr := setupRedisMembership(t, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, newMember(1)))
	require.NoError(t, m.Register(ctx, newMember(2)))

	mr.FastForward(6 * time.Second)
	require.NoError(t, m.Heartbeat(ctx, "worker-2"))
	mr.FastForward(6 * time.Second)

	members, err := m.Members(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "worker-2", members[0].ID)
	assert.True(t, mr.Exists("test:member:worker-2"))
	assert.False(t, mr.Exists("test:member:worker-1"))
}

func TestRedisMembership_EmptyCluster(t *testing.T) {
	m, _ := setupRedisMembership(t, time.Minute)

	members, err := m.Members(context.Background())
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRedisMembership_SkipsCorruptDocuments(t *testing.T) {
	m, mr := setupRedisMembership(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, newMember(1)))
	require.NoError(t, mr.Set("test:member:broken", "{not json"))

	members, err := m.Members(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "worker-1", members[0].ID)

	size, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestRedisMembership_Watch(t *testing.T) {
	m, mr := setupRedisMembership(t, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := m.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Register(ctx, newMember(1)))
	ev := nextEvent(t, events)
	assert.Equal(t, types.MemberEventJoined, ev.Type)
	assert.Equal(t, "worker-1", ev.MemberID)

	mr.FastForward(6 * time.Second)
	ev = nextEvent(t, events)
	assert.Equal(t, types.MemberEventExpired, ev.Type)
	assert.Equal(t, "worker-1", ev.MemberID)
}

func nextEvent(t *testing.T, events <-chan *types.MemberEvent) *types.MemberEvent {
	t.Helper()
	select {
	case ev := <-events:
		require.NotNil(t, ev)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for membership event")
		return nil
	}
}
