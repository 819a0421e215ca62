package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/matmul-engine/internal/executor"
	"yqhp/matmul-engine/pkg/types"
)

// fakeSampler hands out scripted heap readings and advances CPU time by a fixed step.
type fakeSampler struct {
	heap     []uint64
	cpuStep  time.Duration
	cpu      time.Duration
	collects int
}

func (s *fakeSampler) HeapBytes() uint64 {
	if len(s.heap) == 0 {
		return 0
	}
	v := s.heap[0]
	s.heap = s.heap[1:]
	return v
}

func (s *fakeSampler) CPUTime() time.Duration {
	s.cpu += s.cpuStep
	return s.cpu
}

func (s *fakeSampler) Collect() { s.collects++ }

func steppingClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

// clustered pretends to run on a fixed number of nodes.
type clustered struct {
	executor.Multiplier
	nodes int
}

func (c clustered) Name() string               { return "Distributed (gRPC)" }
func (c clustered) CurrentMembershipSize() int { return c.nodes }

// wrong returns a zero matrix of the right shape.
type wrong struct{}

func (wrong) Name() string { return "wrong" }
func (wrong) Multiply(_ context.Context, a, b *types.Matrix) (*types.Matrix, error) {
	return types.Zeros(a.Rows(), b.Cols()), nil
}

type failing struct{ err error }

func (failing) Name() string { return "failing" }
func (f failing) Multiply(context.Context, *types.Matrix, *types.Matrix) (*types.Matrix, error) {
	return nil, f.err
}

type memorySink struct {
	records []types.BenchmarkRecord
	err     error
}

func (s *memorySink) Write(r types.BenchmarkRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func newTestHarness(cfg Config, strategies []executor.Multiplier, sinks ...Sink) (*Harness, *fakeSampler) {
	h := NewHarness(cfg, strategies, sinks...)
	s := &fakeSampler{cpuStep: 60 * time.Millisecond}
	h.WithSampler(s)
	h.now = steppingClock(120 * time.Millisecond)
	h.cores = 2
	return h, s
}

func TestNewHarnessDefaults(t *testing.T) {
	h := NewHarness(Config{}, nil)
	assert.Equal(t, DefaultSizes, h.config.Sizes)
	assert.Equal(t, defaultVerifyTolerance, h.config.Tolerance)
	assert.NotZero(t, h.config.Seed)
	assert.IsType(t, RuntimeSampler{}, h.sampler)
}

func TestRunRecordsInExecutionOrder(t *testing.T) {
	sink := &memorySink{}
	h, sampler := newTestHarness(Config{Sizes: []int{3, 5}, Seed: 1, Verify: true},
		[]executor.Multiplier{executor.NewSequential(), executor.NewParallel(executor.ParallelConfig{Workers: 2})},
		sink)

	records, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, records, sink.records)
	assert.Equal(t, 4, sampler.collects)

	want := []struct {
		name string
		size int
	}{
		{executor.SequentialName, 3},
		{executor.ParallelName, 3},
		{executor.SequentialName, 5},
		{executor.ParallelName, 5},
	}
	for i, w := range want {
		assert.Equal(t, w.name, records[i].Algorithm)
		assert.Equal(t, w.size, records[i].MatrixSize)
		assert.Equal(t, int64(120), records[i].ExecMs)
		assert.Equal(t, 1, records[i].NodesUsed)
		assert.Zero(t, records[i].TransferMs)
		assert.Zero(t, records[i].NetOverheadMs)
		// 60ms of CPU over 120ms wall on 2 cores
		assert.InDelta(t, 25.0, records[i].CPUPct, 1e-9)
	}
}

func TestRunDistributedHeuristics(t *testing.T) {
	h, _ := newTestHarness(Config{Sizes: []int{4}, Seed: 1},
		[]executor.Multiplier{clustered{Multiplier: executor.NewSequential(), nodes: 3}})

	records, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Distributed (gRPC)", r.Algorithm)
	assert.Equal(t, 3, r.NodesUsed)
	assert.Equal(t, int64(12), r.TransferMs)
	assert.Equal(t, int64(17), r.NetOverheadMs)
}

func TestRunMemoryDelta(t *testing.T) {
	h, sampler := newTestHarness(Config{Sizes: []int{2, 2}, Seed: 1},
		[]executor.Multiplier{executor.NewSequential()})
	sampler.heap = []uint64{1 << 20, 3 << 20, 5 << 20, 4 << 20}

	records, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.InDelta(t, 2.0, records[0].MemMB, 1e-9)
	assert.Zero(t, records[1].MemMB, "a shrinking heap is clamped at zero")
}

func TestRunVerifyDetectsWrongResult(t *testing.T) {
	sink := &memorySink{}
	h, _ := newTestHarness(Config{Sizes: []int{4}, Seed: 1, Verify: true},
		[]executor.Multiplier{executor.NewSequential(), wrong{}}, sink)

	records, err := h.Run(context.Background())
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "wrong", verr.Algorithm)
	assert.Equal(t, 4, verr.Size)
	assert.Len(t, records, 1)
	assert.Len(t, sink.records, 1)
}

func TestRunVerifyWithoutSequentialStrategy(t *testing.T) {
	h, _ := newTestHarness(Config{Sizes: []int{6}, Seed: 9, Verify: true},
		[]executor.Multiplier{executor.NewParallel(executor.ParallelConfig{Workers: 4})})

	records, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRunStrategyFailure(t *testing.T) {
	cause := errors.New("boom")
	h, _ := newTestHarness(Config{Sizes: []int{2}, Seed: 1},
		[]executor.Multiplier{executor.NewSequential(), failing{err: cause}})

	records, err := h.Run(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failing with size 2")
	assert.Len(t, records, 1)
}

func TestRunSinkFailure(t *testing.T) {
	cause := errors.New("disk full")
	h, _ := newTestHarness(Config{Sizes: []int{2}, Seed: 1},
		[]executor.Multiplier{executor.NewSequential()}, &memorySink{err: cause})

	records, err := h.Run(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Empty(t, records)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, _ := newTestHarness(Config{Sizes: []int{2}, Seed: 1},
		[]executor.Multiplier{executor.NewSequential()})

	records, err := h.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name  string
		cpu   time.Duration
		wall  time.Duration
		cores int
		want  float64
	}{
		{"single core saturated", time.Second, time.Second, 1, 100},
		{"half of four cores", 2 * time.Second, time.Second, 4, 50},
		{"capped", 3 * time.Second, time.Second, 1, 100},
		{"zero wall", time.Second, 0, 1, 0},
		{"no cpu reading", 0, time.Second, 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cpuPercent(tt.cpu, tt.wall, tt.cores), 1e-9)
		})
	}
}

func TestRuntimeSampler(t *testing.T) {
	var s RuntimeSampler
	s.Collect()
	assert.NotZero(t, s.HeapBytes())
	assert.GreaterOrEqual(t, s.CPUTime(), time.Duration(0))
}
