package config

import (
	"fmt"
	"net"
	"strings"

	"yqhp/matmul-engine/internal/reporter"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// HasField reports whether a field failed validation.
func (e ValidationErrors) HasField(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateCoordinatorConfig(&cfg.Coordinator)
	v.validateWorkerConfig(&cfg.Worker)
	v.validateExecutorConfig(&cfg.Executor)
	v.validateMembershipConfig(&cfg.Membership)
	v.validateBenchmarkConfig(&cfg.Benchmark)
	v.validateOutputConfig(&cfg.Output)
	v.validateLoggingConfig(cfg)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateCoordinatorConfig(cfg *CoordinatorConfig) {
	v.requireAddress("coordinator.grpc_address", cfg.GRPCAddress)
	if cfg.EnableHTTP {
		v.requireAddress("coordinator.http_address", cfg.HTTPAddress)
	}

	if cfg.HeartbeatInterval <= 0 {
		v.addError("coordinator.heartbeat_interval", "heartbeat interval must be positive")
	}
	if cfg.LivenessTimeout <= 0 {
		v.addError("coordinator.liveness_timeout", "liveness timeout must be positive")
	}
	// 存活超时必须大于心跳间隔，否则健康节点也会被驱逐
	if cfg.LivenessTimeout > 0 && cfg.HeartbeatInterval > 0 &&
		cfg.LivenessTimeout <= cfg.HeartbeatInterval {
		v.addError("coordinator.liveness_timeout", "liveness timeout should be greater than heartbeat interval")
	}
	if cfg.SweepInterval <= 0 {
		v.addError("coordinator.sweep_interval", "sweep interval must be positive")
	}
	if cfg.LocalWorkers < 0 {
		v.addError("coordinator.local_workers", "local workers must be non-negative")
	}
	if cfg.MaxMsgSize < 0 {
		v.addError("coordinator.max_msg_size", "max message size must be non-negative")
	}
}

func (v *Validator) validateWorkerConfig(cfg *WorkerConfig) {
	v.requireAddress("worker.address", cfg.Address)
	if cfg.CoordinatorAddr != "" && !isValidAddress(cfg.CoordinatorAddr) {
		v.addError("worker.coordinator_addr", "invalid coordinator address format, expected host:port")
	}
	if cfg.AdvertiseAddress != "" && !isValidAddress(cfg.AdvertiseAddress) {
		v.addError("worker.advertise_address", "invalid advertise address format, expected host:port")
	}
	if cfg.HeartbeatInterval <= 0 {
		v.addError("worker.heartbeat_interval", "heartbeat interval must be positive")
	}
}

func (v *Validator) validateExecutorConfig(cfg *ExecutorConfig) {
	if cfg.ParallelWorkers < 0 {
		v.addError("executor.parallel_workers", "parallel workers must be non-negative")
	}
	if cfg.PoolSize <= 0 {
		v.addError("executor.pool_size", "pool size must be positive")
	}
	if cfg.TaskTimeout <= 0 {
		v.addError("executor.task_timeout", "task timeout must be positive")
	}
	if cfg.Retries < 0 {
		v.addError("executor.retries", "retries must be non-negative")
	}
	if cfg.ShutdownTimeout < 0 {
		v.addError("executor.shutdown_timeout", "shutdown timeout must be non-negative")
	}
}

func (v *Validator) validateMembershipConfig(cfg *MembershipConfig) {
	switch cfg.Backend {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			v.addError("membership.redis.addr", "redis address is required for the redis backend")
		} else if !isValidAddress(cfg.Redis.Addr) {
			v.addError("membership.redis.addr", "invalid redis address format, expected host:port")
		}
		if cfg.Redis.DB < 0 {
			v.addError("membership.redis.db", "redis db must be non-negative")
		}
	default:
		v.addError("membership.backend", fmt.Sprintf("invalid backend '%s', must be one of: memory, redis", cfg.Backend))
	}
}

func (v *Validator) validateBenchmarkConfig(cfg *BenchmarkConfig) {
	if len(cfg.Sizes) == 0 {
		v.addError("benchmark.sizes", "at least one size is required")
	}
	for _, n := range cfg.Sizes {
		if n <= 0 {
			v.addError("benchmark.sizes", fmt.Sprintf("size %d must be positive", n))
			break
		}
	}

	validStrategies := map[string]bool{
		StrategySequential:  true,
		StrategyParallel:    true,
		StrategyDistributed: true,
	}
	if len(cfg.Strategies) == 0 {
		v.addError("benchmark.strategies", "at least one strategy is required")
	}
	for _, s := range cfg.Strategies {
		if !validStrategies[s] {
			v.addError("benchmark.strategies", fmt.Sprintf("invalid strategy '%s', must be one of: sequential, parallel, distributed", s))
		}
	}

	if cfg.Tolerance < 0 {
		v.addError("benchmark.tolerance", "tolerance must be non-negative")
	}
	if cfg.CoordinatorAddr != "" && !isValidAddress(cfg.CoordinatorAddr) {
		v.addError("benchmark.coordinator_addr", "invalid coordinator address format, expected host:port")
	}
}

func (v *Validator) validateOutputConfig(cfg *OutputConfig) {
	registry := reporter.NewRegistry()
	_ = reporter.RegisterBuiltinReporters(registry)
	for i, r := range cfg.Reporters {
		if !registry.HasType(r.Type) {
			v.addError(fmt.Sprintf("output.reporters[%d].type", i), fmt.Sprintf("unknown reporter type '%s'", r.Type))
		}
	}
}

func (v *Validator) validateLoggingConfig(cfg *Config) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	level := cfg.Logging.Level
	if level == "" {
		v.addError("logging.level", "log level is required")
	} else if !validLevels[strings.ToLower(level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", level))
	}

	format := cfg.Logging.Format
	if format != "" && format != "json" && format != "console" {
		v.addError("logging.format", fmt.Sprintf("invalid log format '%s', must be one of: json, console", format))
	}

	switch cfg.Logging.Output {
	case "", "stdout", "stderr":
	case "file", "both":
		if cfg.Logging.FilePath == "" {
			v.addError("logging.file_path", "file path is required when logging to a file")
		}
	default:
		v.addError("logging.output", fmt.Sprintf("invalid log output '%s', must be one of: stdout, stderr, file, both", cfg.Logging.Output))
	}
}

func (v *Validator) requireAddress(field, addr string) {
	if addr == "" {
		v.addError(field, "address is required")
	} else if !isValidAddress(addr) {
		v.addError(field, "invalid address format, expected host:port or :port")
	}
}

// isValidAddress checks if the address is a valid host:port format.
func isValidAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return false
	}

	// Host can be empty (meaning all interfaces), an IP, or a hostname
	if host != "" && net.ParseIP(host) == nil && !isValidHostname(host) {
		return false
	}
	return true
}

// isValidHostname performs basic hostname validation.
func isValidHostname(hostname string) bool {
	if len(hostname) == 0 || len(hostname) > 253 {
		return false
	}

	for _, label := range strings.Split(hostname, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if !isAlphanumeric(label[0]) || !isAlphanumeric(label[len(label)-1]) {
			return false
		}
		for _, c := range label {
			if !isAlphanumeric(byte(c)) && c != '-' {
				return false
			}
		}
	}
	return true
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}

// LoadAndValidate loads configuration and validates it.
func LoadAndValidate(loader *Loader) (*Config, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
