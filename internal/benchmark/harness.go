// Package benchmark drives the multiplication strategies over a sweep of matrix sizes
// and produces one record per strategy and size.
package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"

	"yqhp/matmul-engine/internal/executor"
	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

// DefaultSizes is the default sweep of square matrix sizes.
var DefaultSizes = []int{50, 100, 400, 500, 600, 800, 1024}

// Heuristic network figures for distributed runs: transfer is a tenth of the
// execution time and overhead adds a fixed 5 ms.
const (
	transferDivisor        = 10
	fixedOverheadMs        = 5
	defaultVerifyTolerance = 1e-9
)

// Sink receives records as they are produced.
type Sink interface {
	Write(record types.BenchmarkRecord) error
}

// clusterSized is implemented by strategies that run on several nodes.
type clusterSized interface {
	CurrentMembershipSize() int
}

// Config configures a Harness.
type Config struct {
	// Sizes are the square matrix sizes to run. Empty means DefaultSizes.
	Sizes []int
	// Seed makes the generated matrices reproducible. Zero uses the current time.
	Seed int64
	// Verify compares every result with the sequential product.
	Verify bool
	// Tolerance is the relative tolerance for Verify.
	Tolerance float64
}

// VerificationError reports a strategy whose result differs from the sequential product.
type VerificationError struct {
	Algorithm string
	Size      int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s produced a wrong result for size %d", e.Algorithm, e.Size)
}

// Harness runs strategies and records their metrics.
type Harness struct {
	config     Config
	strategies []executor.Multiplier
	sinks      []Sink
	sampler    Sampler
	cores      int
	now        func() time.Time
}

// NewHarness creates a harness running strategies in order for every size.
func NewHarness(config Config, strategies []executor.Multiplier, sinks ...Sink) *Harness {
	if len(config.Sizes) == 0 {
		config.Sizes = DefaultSizes
	}
	if config.Tolerance <= 0 {
		config.Tolerance = defaultVerifyTolerance
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
	return &Harness{
		config:     config,
		strategies: strategies,
		sinks:      sinks,
		sampler:    RuntimeSampler{},
		cores:      runtime.NumCPU(),
		now:        time.Now,
	}
}

// WithSampler replaces the resource sampler.
func (h *Harness) WithSampler(s Sampler) *Harness {
	h.sampler = s
	return h
}

// Run executes the sweep and returns the records in execution order. Records
// produced before a failure are returned with the error.
func (h *Harness) Run(ctx context.Context) ([]types.BenchmarkRecord, error) {
	rng := rand.New(rand.NewSource(h.config.Seed))
	records := make([]types.BenchmarkRecord, 0, len(h.config.Sizes)*len(h.strategies))

	for _, n := range h.config.Sizes {
		logger.Info("generating matrices", zap.Int("size", n))
		a := types.Random(n, n, rng)
		b := types.Random(n, n, rng)

		var reference *types.Matrix
		for _, s := range h.strategies {
			if err := ctx.Err(); err != nil {
				return records, err
			}

			rec, c, err := h.measure(ctx, s, a, b, n)
			if err != nil {
				return records, fmt.Errorf("%s with size %d: %w", s.Name(), n, err)
			}

			if h.config.Verify {
				if reference == nil {
					reference, err = h.reference(ctx, s, a, b, c)
					if err != nil {
						return records, err
					}
				}
				if !c.EqualWithin(reference, h.config.Tolerance) {
					return records, &VerificationError{Algorithm: s.Name(), Size: n}
				}
			}

			for _, sink := range h.sinks {
				if err := sink.Write(rec); err != nil {
					return records, fmt.Errorf("failed to write record: %w", err)
				}
			}
			records = append(records, rec)
			logger.Info("benchmark run finished",
				zap.String("algorithm", rec.Algorithm),
				zap.Int("size", n),
				zap.Int64("exec_ms", rec.ExecMs),
				zap.Int("nodes", rec.NodesUsed))
		}
	}
	return records, nil
}

// reference returns the sequential product, reusing c when s is itself sequential.
func (h *Harness) reference(ctx context.Context, s executor.Multiplier, a, b, c *types.Matrix) (*types.Matrix, error) {
	if _, ok := s.(*executor.Sequential); ok {
		return c, nil
	}
	ref, err := executor.NewSequential().Multiply(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to compute reference product: %w", err)
	}
	return ref, nil
}

func (h *Harness) measure(ctx context.Context, s executor.Multiplier, a, b *types.Matrix, n int) (types.BenchmarkRecord, *types.Matrix, error) {
	h.sampler.Collect()
	memBefore := h.sampler.HeapBytes()
	cpuBefore := h.sampler.CPUTime()
	start := h.now()

	c, err := s.Multiply(ctx, a, b)

	wall := h.now().Sub(start)
	cpuAfter := h.sampler.CPUTime()
	memAfter := h.sampler.HeapBytes()
	if err != nil {
		return types.BenchmarkRecord{}, nil, err
	}

	rec := types.BenchmarkRecord{
		Algorithm:  s.Name(),
		MatrixSize: n,
		ExecMs:     wall.Milliseconds(),
		MemMB:      memoryDeltaMB(memBefore, memAfter),
		CPUPct:     cpuPercent(cpuAfter-cpuBefore, wall, h.cores),
		NodesUsed:  1,
	}
	if cs, ok := s.(clusterSized); ok {
		rec.NodesUsed = cs.CurrentMembershipSize()
		rec.TransferMs = rec.ExecMs / transferDivisor
		rec.NetOverheadMs = rec.TransferMs + fixedOverheadMs
	}
	return rec, c, nil
}
