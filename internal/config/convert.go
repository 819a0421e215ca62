package config

import (
	grpcclient "yqhp/matmul-engine/api/grpc/client"
	"yqhp/matmul-engine/api/rest"
	"yqhp/matmul-engine/internal/benchmark"
	"yqhp/matmul-engine/internal/coordinator"
	"yqhp/matmul-engine/internal/distributed"
	"yqhp/matmul-engine/internal/executor"
	"yqhp/matmul-engine/internal/worker"
)

// CoordinatorNodeConfig builds the coordinator node configuration.
func (c *Config) CoordinatorNodeConfig() *coordinator.Config {
	cc := coordinator.DefaultConfig()
	if c.Coordinator.ID != "" {
		cc.ID = c.Coordinator.ID
	}
	cc.GRPC.Address = c.Coordinator.GRPCAddress
	if c.Coordinator.MaxMsgSize > 0 {
		cc.GRPC.MaxRecvMsgSize = c.Coordinator.MaxMsgSize
		cc.GRPC.MaxSendMsgSize = c.Coordinator.MaxMsgSize
	}
	cc.Client = c.ClientConfig()
	cc.REST = nil
	if c.Coordinator.EnableHTTP {
		cc.REST = c.RESTConfig()
	}
	cc.HeartbeatInterval = c.Coordinator.HeartbeatInterval
	cc.LivenessTimeout = c.Coordinator.LivenessTimeout
	cc.SweepInterval = c.Coordinator.SweepInterval
	cc.LocalWorkers = c.Coordinator.LocalWorkers
	cc.Executor = c.DistributedOptions()
	return cc
}

// DistributedOptions builds the distributed executor options.
func (c *Config) DistributedOptions() distributed.Options {
	opts := distributed.DefaultOptions()
	opts.PoolSize = c.Executor.PoolSize
	opts.TaskTimeout = c.Executor.TaskTimeout
	opts.Retries = c.Executor.Retries
	opts.ShutdownTimeout = c.Executor.ShutdownTimeout
	return opts
}

// MembershipBackend builds the membership backend configuration.
func (c *Config) MembershipBackend() coordinator.MembershipConfig {
	return coordinator.MembershipConfig{
		Backend:         c.Membership.Backend,
		LivenessTimeout: c.Coordinator.LivenessTimeout,
		Redis: coordinator.RedisConfig{
			Addr:      c.Membership.Redis.Addr,
			Password:  c.Membership.Redis.Password,
			DB:        c.Membership.Redis.DB,
			KeyPrefix: c.Membership.Redis.KeyPrefix,
		},
	}
}

// WorkerNodeConfig builds the worker node configuration.
func (c *Config) WorkerNodeConfig() *worker.Config {
	wc := worker.DefaultConfig()
	wc.ID = c.Worker.ID
	wc.Address = c.Worker.Address
	wc.AdvertiseAddress = c.Worker.AdvertiseAddress
	wc.Labels = c.Worker.Labels
	wc.HeartbeatInterval = c.Worker.HeartbeatInterval
	return wc
}

// ClientConfig builds the gRPC client configuration.
func (c *Config) ClientConfig() *grpcclient.Config {
	cc := grpcclient.DefaultConfig()
	if c.Coordinator.MaxMsgSize > 0 {
		cc.MaxMsgSize = c.Coordinator.MaxMsgSize
	}
	return cc
}

// ParallelConfig builds the shared-memory strategy configuration.
func (c *Config) ParallelConfig() executor.ParallelConfig {
	return executor.ParallelConfig{Workers: c.Executor.ParallelWorkers}
}

// HarnessConfig builds the benchmark harness configuration.
func (c *Config) HarnessConfig() benchmark.Config {
	return benchmark.Config{
		Sizes:     c.Benchmark.Sizes,
		Seed:      c.Benchmark.Seed,
		Verify:    c.Benchmark.Verify,
		Tolerance: c.Benchmark.Tolerance,
	}
}

// RESTBaseURL returns the status API URL derived from the HTTP address.
func (c *Config) RESTBaseURL() string {
	addr := c.Coordinator.HTTPAddress
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// RESTConfig builds the status API configuration.
func (c *Config) RESTConfig() *rest.Config {
	rc := rest.DefaultConfig()
	rc.Address = c.Coordinator.HTTPAddress
	rc.AccessLog = c.Coordinator.AccessLog
	return rc
}
