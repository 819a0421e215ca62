package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"yqhp/matmul-engine/pkg/types"
)

// JSONConfig holds configuration for the JSON Lines reporter.
type JSONConfig struct {
	// FilePath is the output file path.
	FilePath string `yaml:"file_path"`
	// IncludeTimestamp adds the write time to each line.
	IncludeTimestamp bool `yaml:"include_timestamp"`
}

// DefaultJSONConfig returns the default JSON reporter configuration.
func DefaultJSONConfig() *JSONConfig {
	return &JSONConfig{
		FilePath:         "benchmark_results.jsonl",
		IncludeTimestamp: true,
	}
}

// JSONConfigFromMap reads a JSON reporter configuration from a generic map.
func JSONConfigFromMap(config map[string]any) *JSONConfig {
	cfg := DefaultJSONConfig()
	if v, ok := config["file_path"].(string); ok && v != "" {
		cfg.FilePath = v
	}
	if v, ok := config["include_timestamp"].(bool); ok {
		cfg.IncludeTimestamp = v
	}
	return cfg
}

// JSONRecord is one line of the JSON Lines output.
type JSONRecord struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	types.BenchmarkRecord
}

// JSONReporter writes one JSON document per line.
type JSONReporter struct {
	config *JSONConfig
	file   *os.File
	buf    *bufio.Writer
	mu     sync.Mutex
	now    func() time.Time

	initialized bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(config *JSONConfig) *JSONReporter {
	if config == nil {
		config = DefaultJSONConfig()
	}
	return &JSONReporter{config: config, now: time.Now}
}

// Name returns the reporter name.
func (r *JSONReporter) Name() string {
	return "json"
}

// Init creates the output file.
func (r *JSONReporter) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("报告器已初始化")
	}

	dir := filepath.Dir(r.config.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}

	file, err := os.Create(r.config.FilePath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	r.file = file
	r.buf = bufio.NewWriter(file)
	r.initialized = true
	return nil
}

// Write encodes the record as a line.
func (r *JSONReporter) Write(record types.BenchmarkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return fmt.Errorf("报告器未初始化")
	}

	line := JSONRecord{BenchmarkRecord: record}
	if r.config.IncludeTimestamp {
		ts := r.now()
		line.Timestamp = &ts
	}
	data, err := sonic.Marshal(line)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}
	if _, err := r.buf.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	return nil
}

// Flush writes buffered lines to the file.
func (r *JSONReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}
	return r.buf.Flush()
}

// Close flushes and closes the file.
func (r *JSONReporter) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	flushErr := r.buf.Flush()
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("关闭文件失败: %w", err)
	}
	r.initialized = false
	r.file = nil
	r.buf = nil
	if flushErr != nil {
		return fmt.Errorf("写入文件失败: %w", flushErr)
	}
	return nil
}

// GetFilePath returns the output file path.
func (r *JSONReporter) GetFilePath() string {
	return r.config.FilePath
}
