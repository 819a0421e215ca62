// Package file provides file-based reporters for benchmark records.
package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"yqhp/matmul-engine/pkg/types"
)

// DefaultCSVPath is the file the benchmark writes when no path is configured.
const DefaultCSVPath = "benchmark_results.csv"

// CSVHeader is the header row of the results file.
var CSVHeader = []string{
	"Algorithm",
	"Matrix Size",
	"Execution Time (ms)",
	"Memory Used (MB)",
	"CPU Usage (%)",
	"Nodes Used",
	"Network Overhead (ms)",
	"Data Transfer Time (ms)",
}

// CSVConfig holds configuration for the CSV reporter.
type CSVConfig struct {
	// FilePath is the output file path.
	FilePath string `yaml:"file_path"`
	// Delimiter is the field delimiter (default: semicolon).
	Delimiter rune `yaml:"delimiter"`
	// Append keeps an existing file and only writes the header into an empty one.
	Append bool `yaml:"append"`
}

// DefaultCSVConfig returns the default CSV reporter configuration.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		FilePath:  DefaultCSVPath,
		Delimiter: ';',
	}
}

// CSVReporter writes one row per record and flushes after every row, so a
// run that fails midway still leaves the finished rows on disk.
type CSVReporter struct {
	config *CSVConfig
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex

	initialized bool
	rows        int
}

// NewCSVReporter creates a new CSV reporter.
func NewCSVReporter(config *CSVConfig) *CSVReporter {
	if config == nil {
		config = DefaultCSVConfig()
	}
	if config.FilePath == "" {
		config.FilePath = DefaultCSVPath
	}
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}
	return &CSVReporter{config: config}
}

// CSVConfigFromMap reads a CSV reporter configuration from a generic map.
func CSVConfigFromMap(config map[string]any) *CSVConfig {
	cfg := DefaultCSVConfig()
	if v, ok := config["file_path"].(string); ok && v != "" {
		cfg.FilePath = v
	}
	if v, ok := config["delimiter"].(string); ok && len(v) > 0 {
		cfg.Delimiter = rune(v[0])
	}
	if v, ok := config["append"].(bool); ok {
		cfg.Append = v
	}
	return cfg
}

// Name returns the reporter name.
func (r *CSVReporter) Name() string {
	return "csv"
}

// Init creates the file and writes the header.
func (r *CSVReporter) Init(ctx context.Context) error {
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

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if r.config.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(r.config.FilePath, flags, 0644)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}

	writeHeader := true
	if r.config.Append {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return fmt.Errorf("读取文件信息失败: %w", err)
		}
		writeHeader = info.Size() == 0
	}

	r.file = file
	r.writer = csv.NewWriter(file)
	r.writer.Comma = r.config.Delimiter

	if writeHeader {
		if err := r.writeRow(CSVHeader); err != nil {
			r.file.Close()
			return fmt.Errorf("写入头部失败: %w", err)
		}
	}

	r.initialized = true
	return nil
}

// Write appends a record to the file.
func (r *CSVReporter) Write(record types.BenchmarkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return fmt.Errorf("报告器未初始化")
	}

	if err := r.writeRow(FormatRecord(record)); err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	r.rows++
	return nil
}

// Flush flushes any buffered data.
func (r *CSVReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}
	r.writer.Flush()
	return r.writer.Error()
}

// Close closes the reporter.
func (r *CSVReporter) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		r.file.Close()
		return fmt.Errorf("CSV 写入错误: %w", err)
	}

	if err := r.file.Close(); err != nil {
		return fmt.Errorf("关闭文件失败: %w", err)
	}

	r.initialized = false
	r.file = nil
	r.writer = nil
	return nil
}

// Rows returns the number of records written since Init.
func (r *CSVReporter) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// GetFilePath returns the output file path.
func (r *CSVReporter) GetFilePath() string {
	return r.config.FilePath
}

func (r *CSVReporter) writeRow(row []string) error {
	if err := r.writer.Write(row); err != nil {
		return err
	}
	r.writer.Flush()
	return r.writer.Error()
}

// FormatRecord renders a record as a CSV row in header order.
func FormatRecord(record types.BenchmarkRecord) []string {
	return []string{
		record.Algorithm,
		strconv.Itoa(record.MatrixSize),
		strconv.FormatInt(record.ExecMs, 10),
		formatFloat(record.MemMB),
		formatFloat(record.CPUPct),
		strconv.Itoa(record.NodesUsed),
		strconv.FormatInt(record.NetOverheadMs, 10),
		strconv.FormatInt(record.TransferMs, 10),
	}
}

// formatFloat formats a float64 for CSV output.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
