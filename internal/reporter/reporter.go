// Package reporter 提供基准测试记录的输出框架。
package reporter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"yqhp/matmul-engine/pkg/types"
)

// Reporter 定义了基准记录输出的接口。
type Reporter interface {
	// Name 返回报告器名称。
	Name() string

	// Init 初始化报告器，打开文件或连接。
	Init(ctx context.Context) error

	// Write 写入一条基准记录。
	Write(record types.BenchmarkRecord) error

	// Flush 刷新所有缓冲数据。
	Flush(ctx context.Context) error

	// Close 关闭报告器并释放资源。
	Close(ctx context.Context) error
}

// ReporterType 定义报告器类型。
type ReporterType string

const (
	// ReporterTypeConsole 输出到控制台。
	ReporterTypeConsole ReporterType = "console"
	// ReporterTypeCSV 输出到 CSV 文件。
	ReporterTypeCSV ReporterType = "csv"
	// ReporterTypeJSON 输出到 JSON Lines 文件。
	ReporterTypeJSON ReporterType = "json"
	// ReporterTypeSQL 写入 MySQL 或 PostgreSQL。
	ReporterTypeSQL ReporterType = "sql"
)

// ReporterConfig 保存报告器的配置。
type ReporterConfig struct {
	Type    ReporterType   `yaml:"type"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config,omitempty"`
}

// ReporterFactory 创建特定类型的报告器。
type ReporterFactory func(config map[string]any) (Reporter, error)

// Registry 管理报告器的注册和创建。
type Registry struct {
	factories map[ReporterType]ReporterFactory
	mu        sync.RWMutex
}

// NewRegistry 创建一个新的报告器注册表。
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ReporterType]ReporterFactory),
	}
}

// Register 为指定类型注册报告器工厂。
func (r *Registry) Register(reporterType ReporterType, factory ReporterFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reporterType]; exists {
		return fmt.Errorf("报告器类型已注册: %s", reporterType)
	}

	r.factories[reporterType] = factory
	return nil
}

// Create 创建指定类型的报告器。
func (r *Registry) Create(reporterType ReporterType, config map[string]any) (Reporter, error) {
	r.mu.RLock()
	factory, exists := r.factories[reporterType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("未知的报告器类型: %s", reporterType)
	}

	return factory(config)
}

// ListTypes 返回所有已注册的报告器类型，按名称排序。
func (r *Registry) ListTypes() []ReporterType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]ReporterType, 0, len(r.factories))
	for t := range r.factories {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// HasType 检查报告器类型是否已注册。
func (r *Registry) HasType(reporterType ReporterType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[reporterType]
	return exists
}
