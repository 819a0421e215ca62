package reporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/matmul-engine/pkg/types"
)

type mockReporter struct {
	name    string
	records []types.BenchmarkRecord
	inits   int
	flushes int
	closed  bool
	err     error
}

func (m *mockReporter) Name() string { return m.name }

func (m *mockReporter) Init(ctx context.Context) error {
	m.inits++
	return m.err
}

func (m *mockReporter) Write(r types.BenchmarkRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *mockReporter) Flush(ctx context.Context) error {
	m.flushes++
	return m.err
}

func (m *mockReporter) Close(ctx context.Context) error {
	m.closed = true
	return m.err
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	factory := func(map[string]any) (Reporter, error) { return &mockReporter{name: "mock"}, nil }

	require.NoError(t, registry.Register("mock", factory))
	assert.Error(t, registry.Register("mock", factory))
	assert.True(t, registry.HasType("mock"))
	assert.False(t, registry.HasType("other"))

	r, err := registry.Create("mock", nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", r.Name())

	_, err = registry.Create("other", nil)
	assert.ErrorContains(t, err, "未知的报告器类型")
}

func TestRegisterBuiltinReporters(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, RegisterBuiltinReporters(registry))
	assert.Equal(t, []ReporterType{ReporterTypeConsole, ReporterTypeCSV, ReporterTypeJSON, ReporterTypeSQL},
		registry.ListTypes())
	assert.Error(t, RegisterBuiltinReporters(registry), "second registration collides")
}

func TestManagerFanOut(t *testing.T) {
	a := &mockReporter{name: "a"}
	b := &mockReporter{name: "b"}
	m := NewManager(nil)
	m.AddReporter(a)
	m.AddReporter(b)

	rec := types.BenchmarkRecord{Algorithm: "Basic (Sequential)", MatrixSize: 50}
	require.NoError(t, m.Write(rec))
	require.NoError(t, m.Flush(context.Background()))
	require.NoError(t, m.Close(context.Background()))

	assert.Equal(t, []types.BenchmarkRecord{rec}, a.records)
	assert.Equal(t, []types.BenchmarkRecord{rec}, b.records)
	assert.Equal(t, 1, a.flushes)
	assert.True(t, a.closed && b.closed)
	assert.Zero(t, m.Count())
}

func TestManagerWriteCollectsErrors(t *testing.T) {
	cause := errors.New("disk full")
	bad := &mockReporter{name: "bad", err: cause}
	good := &mockReporter{name: "good"}
	m := NewManager(nil)
	m.AddReporter(bad)
	m.AddReporter(good)

	err := m.Write(types.BenchmarkRecord{Algorithm: "x"})
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.records, 1, "remaining reporters still receive the record")
}

func TestManagerAddReporterFromConfig(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, RegisterBuiltinReporters(registry))
	m := NewManager(registry)

	path := filepath.Join(t.TempDir(), "out", "results.csv")
	ctx := context.Background()
	require.NoError(t, m.AddReporterFromConfig(ctx, ReporterConfig{Type: ReporterTypeCSV, Enabled: true,
		Config: map[string]any{"file_path": path}}))
	require.NoError(t, m.AddReporterFromConfig(ctx, ReporterConfig{Type: ReporterTypeJSON, Enabled: false}))
	assert.Equal(t, 1, m.Count())

	err := m.AddReporterFromConfig(ctx, ReporterConfig{Type: "influxdb", Enabled: true})
	assert.ErrorContains(t, err, "创建报告器 influxdb 失败")

	require.NoError(t, m.Write(types.BenchmarkRecord{Algorithm: "Basic (Sequential)", MatrixSize: 50, ExecMs: 3, NodesUsed: 1}))
	require.NoError(t, m.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Basic (Sequential);50;3;0.00;0.00;1;0;0", lines[1])
}

func TestManagerInitFailure(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("broken", func(map[string]any) (Reporter, error) {
		return &mockReporter{name: "broken", err: errors.New("no connection")}, nil
	}))
	m := NewManager(registry)
	err := m.AddReporterFromConfig(context.Background(), ReporterConfig{Type: "broken", Enabled: true})
	assert.ErrorContains(t, err, "初始化报告器 broken 失败")
	assert.Zero(t, m.Count())
}

func TestDefaultReporters(t *testing.T) {
	defaults := DefaultReporters()
	require.Len(t, defaults, 2)
	assert.Equal(t, ReporterTypeCSV, defaults[0].Type)
	assert.Equal(t, "benchmark_results.csv", defaults[0].Config["file_path"])
}
