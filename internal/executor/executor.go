// Package executor contains the local multiplication strategies and the row kernel
// shared by every strategy.
package executor

import (
	"context"

	"yqhp/matmul-engine/pkg/types"
)

// Strategy names used in benchmark records.
const (
	SequentialName = "Basic (Sequential)"
	ParallelName   = "Parallel (Goroutines)"
)

// Multiplier multiplies two matrices.
type Multiplier interface {
	// Name returns the strategy label recorded by the benchmark harness.
	Name() string
	// Multiply computes a x b. It fails with types.ErrDimensionMismatch before
	// any computation when a.Cols() != b.Rows().
	Multiply(ctx context.Context, a, b *types.Matrix) (*types.Matrix, error)
}

// RowKernel computes one output row of a product.
type RowKernel func(row []float64, b *types.Matrix) ([]float64, error)

// MultiplyRow returns row x b, summing over k in ascending order:
// result[j] = sum_k row[k] * b[k][j].
func MultiplyRow(row []float64, b *types.Matrix) []float64 {
	cols := b.Cols()
	out := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for k, v := range row {
			sum += v * b.At(k, j)
		}
		out[j] = sum
	}
	return out
}

// CheckedMultiplyRow is MultiplyRow with a length check on row.
func CheckedMultiplyRow(row []float64, b *types.Matrix) ([]float64, error) {
	if b == nil || len(row) != b.Rows() {
		rows := 0
		if b != nil {
			rows = b.Rows()
		}
		return nil, &types.DimensionMismatchError{ARows: 1, ACols: len(row), BRows: rows, BCols: colsOf(b)}
	}
	return MultiplyRow(row, b), nil
}

func colsOf(m *types.Matrix) int {
	if m == nil {
		return 0
	}
	return m.Cols()
}
