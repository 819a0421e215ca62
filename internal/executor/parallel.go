package executor

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"yqhp/matmul-engine/pkg/types"
)

// ParallelConfig configures the shared-memory strategy.
type ParallelConfig struct {
	// Workers is the number of concurrent chunks. Zero means runtime.GOMAXPROCS(0).
	Workers int
	// Kernel computes one output row. Nil means CheckedMultiplyRow.
	Kernel RowKernel
}

// Parallel splits the rows of a into contiguous chunks and computes them concurrently.
type Parallel struct {
	workers int
	kernel  RowKernel
}

// NewParallel creates the shared-memory strategy.
func NewParallel(cfg ParallelConfig) *Parallel {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	kernel := cfg.Kernel
	if kernel == nil {
		kernel = CheckedMultiplyRow
	}
	return &Parallel{workers: workers, kernel: kernel}
}

// Name implements Multiplier.
func (p *Parallel) Name() string {
	return ParallelName
}

// Workers returns the configured chunk count.
func (p *Parallel) Workers() int {
	return p.workers
}

// Multiply implements Multiplier. Each chunk writes only its own rows of the result.
// The first failing row fails the call and no matrix is returned.
func (p *Parallel) Multiply(ctx context.Context, a, b *types.Matrix) (*types.Matrix, error) {
	if err := types.CheckMultiplicable(a, b); err != nil {
		return nil, err
	}
	rows := a.Rows()
	c := types.Zeros(rows, b.Cols())
	if rows == 0 {
		return c, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, ch := range chunks(rows, p.workers) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("chunk [%d, %d) panicked: %v", ch.start, ch.end, r)
				}
			}()
			for i := ch.start; i < ch.end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				values, err := p.kernel(a.Row(i), b)
				if err != nil {
					return &types.RowComputationError{Row: i, Cause: err}
				}
				if err := c.SetRow(i, values); err != nil {
					return &types.RowComputationError{Row: i, Cause: err}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}

type chunk struct {
	start, end int
}

// chunks partitions [0, n) into at most workers contiguous ranges whose sizes differ by at most one.
func chunks(n, workers int) []chunk {
	if workers > n {
		workers = n
	}
	if workers <= 0 {
		return nil
	}
	size, rem := n/workers, n%workers
	out := make([]chunk, 0, workers)
	start := 0
	for w := 0; w < workers; w++ {
		end := start + size
		if w < rem {
			end++
		}
		out = append(out, chunk{start: start, end: end})
		start = end
	}
	return out
}
