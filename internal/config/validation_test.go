package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/matmul-engine/internal/reporter"
)

func TestValidatorReportsField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty grpc address", func(c *Config) { c.Coordinator.GRPCAddress = "" }, "coordinator.grpc_address"},
		{"bad http address", func(c *Config) { c.Coordinator.HTTPAddress = "localhost" }, "coordinator.http_address"},
		{"liveness not above heartbeat", func(c *Config) { c.Coordinator.LivenessTimeout = c.Coordinator.HeartbeatInterval }, "coordinator.liveness_timeout"},
		{"zero heartbeat", func(c *Config) { c.Coordinator.HeartbeatInterval = 0 }, "coordinator.heartbeat_interval"},
		{"zero sweep", func(c *Config) { c.Coordinator.SweepInterval = 0 }, "coordinator.sweep_interval"},
		{"negative local workers", func(c *Config) { c.Coordinator.LocalWorkers = -1 }, "coordinator.local_workers"},
		{"bad worker coordinator", func(c *Config) { c.Worker.CoordinatorAddr = "bad host:1" }, "worker.coordinator_addr"},
		{"zero worker heartbeat", func(c *Config) { c.Worker.HeartbeatInterval = 0 }, "worker.heartbeat_interval"},
		{"zero pool", func(c *Config) { c.Executor.PoolSize = 0 }, "executor.pool_size"},
		{"zero task timeout", func(c *Config) { c.Executor.TaskTimeout = 0 }, "executor.task_timeout"},
		{"negative retries", func(c *Config) { c.Executor.Retries = -1 }, "executor.retries"},
		{"unknown backend", func(c *Config) { c.Membership.Backend = "etcd" }, "membership.backend"},
		{"redis without addr", func(c *Config) {
			c.Membership.Backend = "redis"
			c.Membership.Redis.Addr = ""
		}, "membership.redis.addr"},
		{"no sizes", func(c *Config) { c.Benchmark.Sizes = nil }, "benchmark.sizes"},
		{"zero size", func(c *Config) { c.Benchmark.Sizes = []int{10, 0} }, "benchmark.sizes"},
		{"unknown strategy", func(c *Config) { c.Benchmark.Strategies = []string{"gpu"} }, "benchmark.strategies"},
		{"negative tolerance", func(c *Config) { c.Benchmark.Tolerance = -1 }, "benchmark.tolerance"},
		{"unknown reporter", func(c *Config) {
			c.Output.Reporters = []reporter.ReporterConfig{{Type: "influxdb", Enabled: true}}
		}, "output.reporters[0].type"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "text" }, "logging.format"},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.True(t, verrs.HasField(tt.field), "errors: %v", verrs)
		})
	}
}

func TestValidatorAcceptsVariants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coordinator.EnableHTTP = false
	cfg.Coordinator.HTTPAddress = ""
	cfg.Coordinator.GRPCAddress = "0.0.0.0:9090"
	cfg.Worker.AdvertiseAddress = "worker-1.cluster.local:9091"
	cfg.Membership.Backend = "redis"
	cfg.Benchmark.Strategies = []string{StrategyDistributed}
	cfg.Benchmark.CoordinatorAddr = "[::1]:9090"
	cfg.Logging.Output = "both"
	cfg.Logging.FilePath = "/var/log/matmul.log"
	cfg.Executor.ShutdownTimeout = time.Second

	assert.NoError(t, cfg.Validate())
}

func TestValidationErrorsMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Executor.PoolSize = 0
	cfg.Benchmark.Sizes = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "executor.pool_size: pool size must be positive")
	assert.Contains(t, err.Error(), "benchmark.sizes")
	assert.Equal(t, "", ValidationErrors{}.Error())
}

func TestLoadAndValidate(t *testing.T) {
	_, err := LoadAndValidate(NewLoader().
		WithEnvLookup(envMap(map[string]string{"MM_MEMBERSHIP_BACKEND": "zookeeper"})))
	assert.ErrorContains(t, err, "membership.backend")

	cfg, err := LoadAndValidate(NewLoader().WithEnvLookup(envMap(nil)))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestIsValidAddress(t *testing.T) {
	valid := []string{":9090", "localhost:9090", "127.0.0.1:80", "[::1]:443", "my-host.example.com:8080"}
	invalid := []string{"", "localhost", ":", "host:notaport", "-bad-:80", "a..b:80", "host:99999"}

	for _, addr := range valid {
		assert.True(t, isValidAddress(addr), addr)
	}
	for _, addr := range invalid {
		assert.False(t, isValidAddress(addr), addr)
	}
}
