// Package types defines the core data structures for the matrix multiplication engine.
//
// This package contains the fundamental types shared by every strategy and transport,
// including:
//   - Matrix and its dimension checks
//   - RowTask and TaskResult, the unit of distributed work
//   - Cluster member information and lifecycle events
//   - Benchmark records produced by the harness
//   - Error kinds surfaced by multiply calls
package types
