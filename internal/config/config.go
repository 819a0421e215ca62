package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"yqhp/matmul-engine/internal/reporter"
	"yqhp/matmul-engine/pkg/logger"
)

// Strategy names accepted in benchmark.strategies.
const (
	StrategySequential  = "sequential"
	StrategyParallel    = "parallel"
	StrategyDistributed = "distributed"
)

// Config represents the complete configuration for the engine.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Worker      WorkerConfig      `yaml:"worker"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Membership  MembershipConfig  `yaml:"membership"`
	Benchmark   BenchmarkConfig   `yaml:"benchmark"`
	Output      OutputConfig      `yaml:"output"`
	Logging     logger.Config     `yaml:"logging"`
}

// CoordinatorConfig holds coordinator node configuration.
type CoordinatorConfig struct {
	ID                string        `yaml:"id" env:"MM_COORDINATOR_ID"`
	GRPCAddress       string        `yaml:"grpc_address" env:"MM_COORDINATOR_GRPC_ADDRESS"`
	HTTPAddress       string        `yaml:"http_address" env:"MM_COORDINATOR_HTTP_ADDRESS"`
	EnableHTTP        bool          `yaml:"enable_http" env:"MM_COORDINATOR_ENABLE_HTTP"`
	AccessLog         bool          `yaml:"access_log" env:"MM_COORDINATOR_ACCESS_LOG"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"MM_COORDINATOR_HEARTBEAT_INTERVAL"`
	LivenessTimeout   time.Duration `yaml:"liveness_timeout" env:"MM_COORDINATOR_LIVENESS_TIMEOUT"`
	SweepInterval     time.Duration `yaml:"sweep_interval" env:"MM_COORDINATOR_SWEEP_INTERVAL"`
	LocalWorkers      int           `yaml:"local_workers" env:"MM_COORDINATOR_LOCAL_WORKERS"`
	MaxMsgSize        int           `yaml:"max_msg_size" env:"MM_COORDINATOR_MAX_MSG_SIZE"`
}

// WorkerConfig holds worker node configuration.
type WorkerConfig struct {
	ID                string            `yaml:"id" env:"MM_WORKER_ID"`
	Address           string            `yaml:"address" env:"MM_WORKER_ADDRESS"`
	AdvertiseAddress  string            `yaml:"advertise_address" env:"MM_WORKER_ADVERTISE_ADDRESS"`
	CoordinatorAddr   string            `yaml:"coordinator_addr" env:"MM_WORKER_COORDINATOR_ADDR"`
	Labels            map[string]string `yaml:"labels" env:"MM_WORKER_LABELS"`
	HeartbeatInterval time.Duration     `yaml:"heartbeat_interval" env:"MM_WORKER_HEARTBEAT_INTERVAL"`
}

// ExecutorConfig holds settings of the parallel and distributed strategies.
type ExecutorConfig struct {
	ParallelWorkers int           `yaml:"parallel_workers" env:"MM_EXECUTOR_PARALLEL_WORKERS"`
	PoolSize        int           `yaml:"pool_size" env:"MM_EXECUTOR_POOL_SIZE"`
	TaskTimeout     time.Duration `yaml:"task_timeout" env:"MM_EXECUTOR_TASK_TIMEOUT"`
	Retries         int           `yaml:"retries" env:"MM_EXECUTOR_RETRIES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"MM_EXECUTOR_SHUTDOWN_TIMEOUT"`
}

// MembershipConfig selects the membership backend.
type MembershipConfig struct {
	Backend string      `yaml:"backend" env:"MM_MEMBERSHIP_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"MM_REDIS_ADDR"`
	Password  string `yaml:"password" env:"MM_REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"MM_REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" env:"MM_REDIS_KEY_PREFIX"`
}

// BenchmarkConfig holds the benchmark sweep.
type BenchmarkConfig struct {
	Sizes      []int    `yaml:"sizes" env:"MM_BENCH_SIZES"`
	Strategies []string `yaml:"strategies" env:"MM_BENCH_STRATEGIES"`
	Seed       int64    `yaml:"seed" env:"MM_BENCH_SEED"`
	Verify     bool     `yaml:"verify" env:"MM_BENCH_VERIFY"`
	Tolerance  float64  `yaml:"tolerance" env:"MM_BENCH_TOLERANCE"`
	// CoordinatorAddr runs the distributed strategy against a remote
	// coordinator. Empty starts an in-process coordinator.
	CoordinatorAddr string `yaml:"coordinator_addr" env:"MM_BENCH_COORDINATOR_ADDR"`
}

// OutputConfig lists the record reporters.
type OutputConfig struct {
	Reporters []reporter.ReporterConfig `yaml:"reporters"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			GRPCAddress:       ":9090",
			HTTPAddress:       ":8080",
			EnableHTTP:        true,
			HeartbeatInterval: 5 * time.Second,
			LivenessTimeout:   15 * time.Second,
			SweepInterval:     5 * time.Second,
			LocalWorkers:      2,
			MaxMsgSize:        64 * 1024 * 1024, // 64MB
		},
		Worker: WorkerConfig{
			Address:           ":9091",
			CoordinatorAddr:   "localhost:9090",
			Labels:            make(map[string]string),
			HeartbeatInterval: 5 * time.Second,
		},
		Executor: ExecutorConfig{
			PoolSize:        64,
			TaskTimeout:     30 * time.Second,
			Retries:         0,
			ShutdownTimeout: 10 * time.Second,
		},
		Membership: MembershipConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "matmul:member:",
			},
		},
		Benchmark: BenchmarkConfig{
			Sizes:      []int{50, 100, 400, 500, 600, 800, 1024},
			Strategies: []string{StrategySequential, StrategyParallel, StrategyDistributed},
			Verify:     false,
			Tolerance:  1e-9,
		},
		Output: OutputConfig{
			Reporters: reporter.DefaultReporters(),
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	cmdArgs    map[string]string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		cmdArgs:   make(map[string]string),
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithCmdArgs sets command-line arguments for configuration override.
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// WithEnvLookup replaces the environment lookup.
func (l *Loader) WithEnvLookup(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	for key, value := range l.cmdArgs {
		if err := SetValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("应用命令行参数覆盖失败: 设置配置值 %s 失败: %w", key, err)
		}
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file. A missing file keeps the defaults.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := l.lookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", envTag, fieldType.Name, err)
		}
	}

	return nil
}

// SetValue sets a configuration value by its dot-separated YAML path, for
// example "coordinator.local_workers".
func SetValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("未知的配置路径: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if tag == name || strings.EqualFold(t.Field(i).Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration 按时间格式解析
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("无效的整数: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("无效的浮点数: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch field.Type().Elem().Kind() {
		case reflect.String:
			field.Set(reflect.ValueOf(parts))
		case reflect.Int:
			ints := make([]int, len(parts))
			for i, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil {
					return fmt.Errorf("无效的整数: %w", err)
				}
				ints[i] = n
			}
			field.Set(reflect.ValueOf(ints))
		default:
			return fmt.Errorf("不支持的切片类型: %s", field.Type().Elem().Kind())
		}

	case reflect.Map:
		// key=value,key=value 格式
		if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.String {
			m := make(map[string]string)
			for _, pair := range strings.Split(value, ",") {
				kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
				if len(kv) == 2 {
					m[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
				}
			}
			field.Set(reflect.ValueOf(m))
		} else {
			return fmt.Errorf("不支持的 map 类型")
		}

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}
