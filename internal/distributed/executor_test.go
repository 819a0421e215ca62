package distributed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/internal/executor"
	"yqhp/matmul-engine/pkg/types"
)

func setupExecutor(t *testing.T, members int, opts Options) (*Executor, *LocalTransport, *cluster.InMemoryMembership) {
	t.Helper()
	membership := cluster.NewInMemoryMembership()
	for i := 0; i < members; i++ {
		id := fmt.Sprintf("node-%d", i)
		require.NoError(t, membership.Register(context.Background(), &types.MemberInfo{ID: id, Address: LocalAddress(id)}))
	}
	transport := NewLocalTransport()
	exec, err := New(membership, transport, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Shutdown() })
	return exec, transport, membership
}

func TestExecutor_KnownProduct(t *testing.T) {
	exec, _, _ := setupExecutor(t, 2, DefaultOptions())

	a := types.MustMatrix([][]float64{{1, 2}, {3, 4}})
	b := types.MustMatrix([][]float64{{5, 6}, {7, 8}})
	c, err := exec.Multiply(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{19, 22}, {43, 50}}, c.ToRows())
	assert.Equal(t, Name, exec.Name())
}

func TestExecutor_MatchesSequential(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 3, Options{PoolSize: 4})
	rng := rand.New(rand.NewSource(11))
	a := types.Random(40, 17, rng)
	b := types.Random(17, 23, rng)

	want, err := executor.NewSequential().Multiply(context.Background(), a, b)
	require.NoError(t, err)
	got, err := exec.Multiply(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, got.EqualWithin(want, 1e-9))

	// round robin spreads the rows over every member
	total := 0
	for i := 0; i < 3; i++ {
		calls := transport.Calls(fmt.Sprintf("node-%d", i))
		assert.Greater(t, calls, 0)
		total += calls
	}
	assert.Equal(t, 40, total)
}

func TestExecutor_IdentityIsExact(t *testing.T) {
	exec, _, _ := setupExecutor(t, 4, DefaultOptions())
	a := types.Random(100, 100, rand.New(rand.NewSource(5)))

	c, err := exec.Multiply(context.Background(), a, types.Identity(100))
	require.NoError(t, err)
	assert.True(t, c.EqualWithin(a, 0))
}

func TestExecutor_DimensionMismatch(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 1, DefaultOptions())

	c, err := exec.Multiply(context.Background(), types.Zeros(2, 3), types.Zeros(2, 3))
	assert.Nil(t, c)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	assert.Zero(t, transport.Calls("node-0"))
}

func TestExecutor_SingleRowFailure(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 2, DefaultOptions())
	boom := errors.New("worker crashed")
	transport.FailRow(3, boom)

	a := types.Random(8, 4, rand.New(rand.NewSource(1)))
	c, err := exec.Multiply(context.Background(), a, types.Identity(4))
	assert.Nil(t, c)
	require.ErrorIs(t, err, boom)

	var failure *types.DistributedTaskFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 3, failure.Row)
	assert.NotEmpty(t, failure.MemberID)
}

func TestExecutor_FirstFailureInRowOrder(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 2, DefaultOptions())
	transport.FailRow(5, errors.New("row 5"))
	transport.FailRow(2, errors.New("row 2"))

	_, err := exec.Multiply(context.Background(), types.Identity(8), types.Identity(8))
	var failure *types.DistributedTaskFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 2, failure.Row)
}

func TestExecutor_NoRetryByDefault(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 2, DefaultOptions())
	transport.FailMember("node-0", errors.New("down"))

	_, err := exec.Multiply(context.Background(), types.Identity(4), types.Identity(4))
	var failure *types.DistributedTaskFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "node-0", failure.MemberID)
}

func TestExecutor_RetriesOnNextMember(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 2, Options{Retries: 1})
	transport.FailMember("node-0", errors.New("down"))

	a := types.Random(6, 3, rand.New(rand.NewSource(2)))
	c, err := exec.Multiply(context.Background(), a, types.Identity(3))
	require.NoError(t, err)
	assert.True(t, c.EqualWithin(a, 0))
	assert.Equal(t, 6, transport.Calls("node-1"))
}

func TestExecutor_RetriesAfterMemberTimeout(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 2, Options{Retries: 1, TaskTimeout: 100 * time.Millisecond})
	transport.SetMemberLatency("node-0", 10*time.Second)

	start := time.Now()
	c, err := exec.Multiply(context.Background(), types.Identity(4), types.Identity(4))
	require.NoError(t, err)
	assert.True(t, c.EqualWithin(types.Identity(4), 0))
	assert.Less(t, time.Since(start), 2*time.Second)

	// both rows first sent to node-0 time out and move to node-1
	assert.Equal(t, 2, transport.Calls("node-0"))
	assert.Equal(t, 4, transport.Calls("node-1"))
}

func TestOptions_CollectTimeoutCoversEveryAttempt(t *testing.T) {
	opts := Options{TaskTimeout: 100 * time.Millisecond, Retries: 2}
	assert.Equal(t, 300*time.Millisecond+collectGrace, opts.collectTimeout())
	assert.Equal(t, 100*time.Millisecond+collectGrace, Options{TaskTimeout: 100 * time.Millisecond}.collectTimeout())
}

func TestExecutor_ZeroMatrix(t *testing.T) {
	exec, _, _ := setupExecutor(t, 3, DefaultOptions())
	a := types.Random(5, 4, rand.New(rand.NewSource(9)))

	c, err := exec.Multiply(context.Background(), a, types.Zeros(4, 6))
	require.NoError(t, err)
	assert.Equal(t, 5, c.Rows())
	assert.Equal(t, 6, c.Cols())
	assert.True(t, c.EqualWithin(types.Zeros(5, 6), 0))
}

func TestExecutor_TaskTimeout(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 1, Options{TaskTimeout: 50 * time.Millisecond})
	transport.SetLatency(time.Second)

	start := time.Now()
	c, err := exec.Multiply(context.Background(), types.Identity(3), types.Identity(3))
	assert.Nil(t, c)
	assert.ErrorIs(t, err, types.ErrTaskTimeout)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	var failure *types.DistributedTaskFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 0, failure.Row)
	assert.Equal(t, "node-0", failure.MemberID)
}

func TestExecutor_NoMembers(t *testing.T) {
	exec, _, _ := setupExecutor(t, 0, DefaultOptions())

	c, err := exec.Multiply(context.Background(), types.Identity(2), types.Identity(2))
	assert.Nil(t, c)
	assert.ErrorIs(t, err, types.ErrMembershipUnavailable)
}

type brokenMembership struct {
	cluster.Membership
}

func (brokenMembership) Members(context.Context) ([]*types.MemberInfo, error) {
	return nil, errors.New("redis unreachable")
}

func (brokenMembership) Size(context.Context) (int, error) {
	return 0, errors.New("redis unreachable")
}

func TestExecutor_MembershipQueryFailure(t *testing.T) {
	exec, err := New(brokenMembership{}, NewLocalTransport(), DefaultOptions())
	require.NoError(t, err)
	defer exec.Shutdown()

	_, err = exec.Multiply(context.Background(), types.Identity(2), types.Identity(2))
	assert.ErrorIs(t, err, types.ErrMembershipUnavailable)
	assert.Equal(t, 0, exec.CurrentMembershipSize())
}

func TestExecutor_CurrentMembershipSize(t *testing.T) {
	exec, _, membership := setupExecutor(t, 3, DefaultOptions())
	assert.Equal(t, 3, exec.CurrentMembershipSize())

	require.NoError(t, membership.Leave(context.Background(), "node-1"))
	assert.Equal(t, 2, exec.CurrentMembershipSize())
}

func TestExecutor_ShutdownIsIdempotent(t *testing.T) {
	exec, _, _ := setupExecutor(t, 1, DefaultOptions())

	require.NoError(t, exec.Shutdown())
	require.NoError(t, exec.Shutdown())

	_, err := exec.Multiply(context.Background(), types.Identity(2), types.Identity(2))
	assert.ErrorIs(t, err, types.ErrExecutorShutdown)
}

func TestExecutor_ShutdownDuringMultiply(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 1, Options{TaskTimeout: 5 * time.Second, ShutdownTimeout: time.Second})
	transport.SetLatency(200 * time.Millisecond)

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = exec.Multiply(context.Background(), types.Identity(16), types.Identity(16))
	}()

	time.Sleep(50 * time.Millisecond)
	_ = exec.Shutdown()
	wg.Wait()

	var failure *types.DistributedTaskFailure
	require.True(t, errors.As(err, &failure))
	assert.ErrorIs(t, err, types.ErrExecutorShutdown)
}

func TestExecutor_CancelledContext(t *testing.T) {
	exec, transport, _ := setupExecutor(t, 2, DefaultOptions())
	transport.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	c, err := exec.Multiply(ctx, types.Identity(4), types.Identity(4))
	assert.Nil(t, c)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_LatencyStats(t *testing.T) {
	exec, _, _ := setupExecutor(t, 2, DefaultOptions())

	_, err := exec.Multiply(context.Background(), types.Identity(10), types.Identity(10))
	require.NoError(t, err)

	stats := exec.LatencyStats()
	assert.Equal(t, int64(10), stats.Count)
	assert.LessOrEqual(t, stats.P50, stats.Max)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, NewLocalTransport(), DefaultOptions())
	assert.Error(t, err)
	_, err = New(cluster.NewInMemoryMembership(), nil, DefaultOptions())
	assert.Error(t, err)
}
