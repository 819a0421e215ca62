// Package console prints benchmark records as they are produced.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"yqhp/matmul-engine/pkg/types"
)

// Config holds configuration for the console reporter.
type Config struct {
	// Writer is the output writer (defaults to os.Stdout).
	Writer io.Writer `yaml:"-"`
}

// Reporter implements the console reporter.
type Reporter struct {
	writer io.Writer
	tw     *tabwriter.Writer
	mu     sync.Mutex

	headerWritten bool
}

// New creates a new console reporter.
func New(config *Config) *Reporter {
	w := io.Writer(os.Stdout)
	if config != nil && config.Writer != nil {
		w = config.Writer
	}
	return &Reporter{writer: w}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return "console"
}

// Init implements reporter.Reporter.
func (r *Reporter) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tw = tabwriter.NewWriter(r.writer, 0, 0, 2, ' ', 0)
	r.headerWritten = false
	return nil
}

// Write prints one row. Rows are aligned on Flush.
func (r *Reporter) Write(record types.BenchmarkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tw == nil {
		return fmt.Errorf("报告器未初始化")
	}
	if !r.headerWritten {
		fmt.Fprintln(r.tw, "ALGORITHM\tSIZE\tTIME(ms)\tMEM(MB)\tCPU(%)\tNODES\tOVERHEAD(ms)\tTRANSFER(ms)")
		fmt.Fprintln(r.tw, strings.Repeat("-", 9)+"\t----\t--------\t-------\t------\t-----\t------------\t------------")
		r.headerWritten = true
	}
	_, err := fmt.Fprintf(r.tw, "%s\t%d\t%d\t%.2f\t%.2f\t%d\t%d\t%d\n",
		record.Algorithm, record.MatrixSize, record.ExecMs, record.MemMB, record.CPUPct,
		record.NodesUsed, record.NetOverheadMs, record.TransferMs)
	return err
}

// Flush writes the aligned table.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tw == nil {
		return nil
	}
	return r.tw.Flush()
}

// Close flushes remaining rows.
func (r *Reporter) Close(ctx context.Context) error {
	if err := r.Flush(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.tw = nil
	r.mu.Unlock()
	return nil
}
