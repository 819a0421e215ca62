package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"yqhp/matmul-engine/pkg/types"
)

// Manager 将每条记录分发给多个报告器，可直接作为基准测试的输出端。
type Manager struct {
	registry  *Registry
	reporters []Reporter
	mu        sync.RWMutex
}

// NewManager creates a new reporter manager.
func NewManager(registry *Registry) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry: registry,
	}
}

// AddReporter adds an initialized reporter.
func (m *Manager) AddReporter(reporter Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, reporter)
}

// AddReporterFromConfig creates, initializes and adds a reporter. Disabled
// entries are skipped.
func (m *Manager) AddReporterFromConfig(ctx context.Context, config ReporterConfig) error {
	if !config.Enabled {
		return nil
	}

	reporter, err := m.registry.Create(config.Type, config.Config)
	if err != nil {
		return fmt.Errorf("创建报告器 %s 失败: %w", config.Type, err)
	}

	if err := reporter.Init(ctx); err != nil {
		return fmt.Errorf("初始化报告器 %s 失败: %w", config.Type, err)
	}

	m.AddReporter(reporter)
	return nil
}

// Write sends the record to every reporter. All reporters are tried even when
// one fails.
func (m *Manager) Write(record types.BenchmarkRecord) error {
	var errs []error
	for _, reporter := range m.snapshot() {
		if err := reporter.Write(record); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", reporter.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Flush flushes all reporters.
func (m *Manager) Flush(ctx context.Context) error {
	var errs []error
	for _, reporter := range m.snapshot() {
		if err := reporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", reporter.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all reporters and empties the manager.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	reporters := m.reporters
	m.reporters = nil
	m.mu.Unlock()

	var errs []error
	for _, reporter := range reporters {
		if err := reporter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", reporter.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of reporters.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reporters)
}

func (m *Manager) snapshot() []Reporter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reporters := make([]Reporter, len(m.reporters))
	copy(reporters, m.reporters)
	return reporters
}
