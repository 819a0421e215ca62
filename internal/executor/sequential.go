package executor

import (
	"context"

	"yqhp/matmul-engine/pkg/types"
)

// Sequential multiplies on the calling goroutine.
type Sequential struct{}

// NewSequential creates the sequential strategy.
func NewSequential() *Sequential {
	return &Sequential{}
}

// Name implements Multiplier.
func (s *Sequential) Name() string {
	return SequentialName
}

// Multiply implements Multiplier.
func (s *Sequential) Multiply(ctx context.Context, a, b *types.Matrix) (*types.Matrix, error) {
	if err := types.CheckMultiplicable(a, b); err != nil {
		return nil, err
	}
	c := types.Zeros(a.Rows(), b.Cols())
	for i := 0; i < a.Rows(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.SetRow(i, MultiplyRow(a.Row(i), b)); err != nil {
			return nil, err
		}
	}
	return c, nil
}
