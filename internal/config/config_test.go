package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/matmul-engine/internal/reporter"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{50, 100, 400, 500, 600, 800, 1024}, cfg.Benchmark.Sizes)
	assert.Equal(t, "memory", cfg.Membership.Backend)
	assert.Equal(t, reporter.ReporterTypeCSV, cfg.Output.Reporters[0].Type)
}

func TestLoaderMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnvLookup(envMap(nil)).
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Coordinator.GRPCAddress, cfg.Coordinator.GRPCAddress)
}

func TestLoaderFromFile(t *testing.T) {
	path := writeConfig(t, `
coordinator:
  grpc_address: ":7000"
  local_workers: 4
  liveness_timeout: 30s
membership:
  backend: redis
  redis:
    addr: "redis:6379"
benchmark:
  sizes: [8, 16]
  strategies: [sequential, distributed]
  verify: true
output:
  reporters:
    - type: csv
      enabled: true
      config:
        file_path: out/results.csv
logging:
  level: debug
`)
	cfg, err := NewLoader().WithConfigPath(path).WithEnvLookup(envMap(nil)).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Coordinator.GRPCAddress)
	assert.Equal(t, 4, cfg.Coordinator.LocalWorkers)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.LivenessTimeout)
	assert.Equal(t, 5*time.Second, cfg.Coordinator.HeartbeatInterval, "unset fields keep defaults")
	assert.Equal(t, "redis", cfg.Membership.Backend)
	assert.Equal(t, "redis:6379", cfg.Membership.Redis.Addr)
	assert.Equal(t, "matmul:member:", cfg.Membership.Redis.KeyPrefix)
	assert.Equal(t, []int{8, 16}, cfg.Benchmark.Sizes)
	assert.Equal(t, []string{"sequential", "distributed"}, cfg.Benchmark.Strategies)
	assert.True(t, cfg.Benchmark.Verify)
	require.Len(t, cfg.Output.Reporters, 1)
	assert.Equal(t, "out/results.csv", cfg.Output.Reporters[0].Config["file_path"])
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoaderInvalidYAML(t *testing.T) {
	path := writeConfig(t, "coordinator: [not, a, map]")
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.ErrorContains(t, err, "从文件加载配置失败")
}

func TestLoaderPrecedence(t *testing.T) {
	path := writeConfig(t, `
coordinator:
  local_workers: 4
  grpc_address: ":7000"
executor:
  retries: 1
`)
	env := envMap(map[string]string{
		"MM_COORDINATOR_LOCAL_WORKERS": "6",
		"MM_EXECUTOR_RETRIES":          "2",
		"MM_LOG_LEVEL":                 "warn",
		"MM_BENCH_SIZES":               "10, 20,30",
		"MM_WORKER_LABELS":             "zone=a,rack=7",
	})
	cfg, err := NewLoader().
		WithConfigPath(path).
		WithEnvLookup(env).
		WithCmdArgs(map[string]string{"executor.retries": "3"}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Coordinator.GRPCAddress, "file beats default")
	assert.Equal(t, 6, cfg.Coordinator.LocalWorkers, "env beats file")
	assert.Equal(t, 3, cfg.Executor.Retries, "flag beats env")
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, []int{10, 20, 30}, cfg.Benchmark.Sizes)
	assert.Equal(t, map[string]string{"zone": "a", "rack": "7"}, cfg.Worker.Labels)
}

func TestLoaderBadEnvValue(t *testing.T) {
	_, err := NewLoader().
		WithEnvLookup(envMap(map[string]string{"MM_EXECUTOR_TASK_TIMEOUT": "soon"})).
		Load()
	assert.ErrorContains(t, err, "MM_EXECUTOR_TASK_TIMEOUT")
}

func TestSetValue(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, SetValue(cfg, "coordinator.heartbeat_interval", "2s"))
	require.NoError(t, SetValue(cfg, "benchmark.tolerance", "1e-6"))
	require.NoError(t, SetValue(cfg, "benchmark.verify", "true"))
	require.NoError(t, SetValue(cfg, "benchmark.seed", "42"))
	require.NoError(t, SetValue(cfg, "membership.redis.db", "3"))
	require.NoError(t, SetValue(cfg, "logging.format", "json"))

	assert.Equal(t, 2*time.Second, cfg.Coordinator.HeartbeatInterval)
	assert.Equal(t, 1e-6, cfg.Benchmark.Tolerance)
	assert.True(t, cfg.Benchmark.Verify)
	assert.Equal(t, int64(42), cfg.Benchmark.Seed)
	assert.Equal(t, 3, cfg.Membership.Redis.DB)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.ErrorContains(t, SetValue(cfg, "coordinator.nope", "1"), "未知的配置路径")
	assert.ErrorContains(t, SetValue(cfg, "benchmark.seed.x", "1"), "期望 seed 是结构体")
	assert.Error(t, SetValue(cfg, "benchmark.verify", "maybe"))
	assert.Error(t, SetValue(cfg, "benchmark.sizes", "1,two"))
	assert.ErrorContains(t, SetValue(cfg, "output.reporters", "csv"), "不支持的切片类型")
}

func TestSerializeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coordinator.LocalWorkers = 9
	cfg.Benchmark.Sizes = []int{3}

	data, err := cfg.Serialize()
	require.NoError(t, err)
	parsed, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coordinator.ID = "coord-1"
	cfg.Coordinator.MaxMsgSize = 1 << 20
	cfg.Executor.Retries = 2
	cfg.Executor.ParallelWorkers = 3
	cfg.Membership.Redis.DB = 5

	cc := cfg.CoordinatorNodeConfig()
	assert.Equal(t, "coord-1", cc.ID)
	assert.Equal(t, ":9090", cc.GRPC.Address)
	assert.Equal(t, 1<<20, cc.GRPC.MaxRecvMsgSize)
	assert.Equal(t, 1<<20, cc.Client.MaxMsgSize)
	require.NotNil(t, cc.REST)
	assert.Equal(t, ":8080", cc.REST.Address)
	assert.Equal(t, 2, cc.LocalWorkers)
	assert.Equal(t, 2, cc.Executor.Retries)

	cfg.Coordinator.EnableHTTP = false
	assert.Nil(t, cfg.CoordinatorNodeConfig().REST)

	mc := cfg.MembershipBackend()
	assert.Equal(t, "memory", mc.Backend)
	assert.Equal(t, 15*time.Second, mc.LivenessTimeout)
	assert.Equal(t, 5, mc.Redis.DB)

	wc := cfg.WorkerNodeConfig()
	assert.Equal(t, ":9091", wc.Address)

	assert.Equal(t, 3, cfg.ParallelConfig().Workers)
	hc := cfg.HarnessConfig()
	assert.Equal(t, cfg.Benchmark.Sizes, hc.Sizes)
	assert.Equal(t, 1e-9, hc.Tolerance)

	assert.Equal(t, "http://localhost:8080", cfg.RESTBaseURL())
	cfg.Coordinator.HTTPAddress = "10.0.0.1:80"
	assert.Equal(t, "http://10.0.0.1:80", cfg.RESTBaseURL())
}
