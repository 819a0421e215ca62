package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when A.cols != B.rows.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrMembershipUnavailable is returned when no worker is reachable at dispatch time.
	ErrMembershipUnavailable = errors.New("no cluster member available")

	// ErrTaskTimeout is the cause of a task that exceeded its bounded wait.
	ErrTaskTimeout = errors.New("task timed out")

	// ErrExecutorShutdown is returned by an executor after Shutdown.
	ErrExecutorShutdown = errors.New("executor is shut down")
)

// DimensionMismatchError carries the incompatible shapes.
type DimensionMismatchError struct {
	ARows, ACols int
	BRows, BCols int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: cannot multiply %dx%d by %dx%d", e.ARows, e.ACols, e.BRows, e.BCols)
}

// Is reports ErrDimensionMismatch as the error kind.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// DistributedTaskFailure reports the row task that aborted a distributed multiply call.
type DistributedTaskFailure struct {
	Row      int
	MemberID string
	Cause    error
}

func (e *DistributedTaskFailure) Error() string {
	if e.MemberID == "" {
		return fmt.Sprintf("row task %d failed: %v", e.Row, e.Cause)
	}
	return fmt.Sprintf("row task %d failed on member %s: %v", e.Row, e.MemberID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *DistributedTaskFailure) Unwrap() error {
	return e.Cause
}

// RowComputationError reports a failed row in a local strategy.
type RowComputationError struct {
	Row   int
	Cause error
}

func (e *RowComputationError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RowComputationError) Unwrap() error {
	return e.Cause
}
