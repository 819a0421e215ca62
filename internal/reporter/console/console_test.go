package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/matmul-engine/pkg/types"
)

func TestReporterPrintsTable(t *testing.T) {
	var buf bytes.Buffer
	r := New(&Config{Writer: &buf})
	ctx := context.Background()
	assert.Equal(t, "console", r.Name())

	require.NoError(t, r.Init(ctx))
	require.NoError(t, r.Write(types.BenchmarkRecord{Algorithm: "Basic (Sequential)", MatrixSize: 50, ExecMs: 2, NodesUsed: 1}))
	require.NoError(t, r.Write(types.BenchmarkRecord{Algorithm: "Parallel (Goroutines)", MatrixSize: 50, ExecMs: 1, CPUPct: 87.5, NodesUsed: 1}))
	require.NoError(t, r.Close(ctx))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ALGORITHM"))
	assert.Contains(t, lines[3], "Parallel (Goroutines)")
	assert.Contains(t, lines[3], "87.50")
	// columns are aligned
	assert.Equal(t, strings.Index(lines[2], "50"), strings.Index(lines[3], "50"))
}

func TestReporterWriteBeforeInit(t *testing.T) {
	r := New(nil)
	assert.Error(t, r.Write(types.BenchmarkRecord{}))
	assert.NoError(t, r.Flush(context.Background()))
}
