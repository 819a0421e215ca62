package executor

import (
	"context"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"pgregory.net/rapid"

	"yqhp/matmul-engine/pkg/types"
)

// TestStrategiesAgreeProperty 顺序与并行策略对任意形状的输入给出一致的结果
func TestStrategiesAgreeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("parallel equals sequential", prop.ForAll(
		func(m, n, p, workers int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			a := types.Random(m, n, rng)
			b := types.Random(n, p, rng)

			want, err := NewSequential().Multiply(context.Background(), a, b)
			if err != nil {
				return false
			}
			got, err := NewParallel(ParallelConfig{Workers: workers}).Multiply(context.Background(), a, b)
			if err != nil {
				return false
			}
			return got.EqualWithin(want, 1e-9)
		},
		gen.IntRange(1, 24),
		gen.IntRange(1, 12),
		gen.IntRange(1, 12),
		gen.IntRange(1, 8),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// TestIdentityLawProperty A x I == A，且 I x A == A
func TestIdentityLawProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.IntRange(1, 16).Draw(t, "rows")
		cols := rapid.IntRange(1, 16).Draw(t, "cols")
		seed := rapid.Int64().Draw(t, "seed")
		workers := rapid.IntRange(1, 6).Draw(t, "workers")

		a := types.Random(rows, cols, rand.New(rand.NewSource(seed)))
		p := NewParallel(ParallelConfig{Workers: workers})

		right, err := p.Multiply(context.Background(), a, types.Identity(cols))
		if err != nil {
			t.Fatalf("right identity: %v", err)
		}
		if !right.EqualWithin(a, 0) {
			t.Fatalf("A x I != A for %s", a.Shape())
		}

		left, err := NewSequential().Multiply(context.Background(), types.Identity(rows), a)
		if err != nil {
			t.Fatalf("left identity: %v", err)
		}
		if !left.EqualWithin(a, 0) {
			t.Fatalf("I x A != A for %s", a.Shape())
		}
	})
}
