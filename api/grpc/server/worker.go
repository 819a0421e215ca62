package server

import (
	"context"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"yqhp/matmul-engine/api/grpc/wire"
	"yqhp/matmul-engine/internal/executor"
)

// WorkerService computes row tasks sent by a coordinator.
type WorkerService struct {
	memberID string
	kernel   executor.RowKernel
	served   atomic.Int64
	failed   atomic.Int64
}

var _ wire.WorkerServiceServer = (*WorkerService)(nil)

// NewWorkerService creates the service for memberID. A nil kernel uses the checked row kernel.
func NewWorkerService(memberID string, kernel executor.RowKernel) *WorkerService {
	if kernel == nil {
		kernel = executor.CheckedMultiplyRow
	}
	return &WorkerService{memberID: memberID, kernel: kernel}
}

// ComputeRow implements wire.WorkerServiceServer.
func (w *WorkerService) ComputeRow(ctx context.Context, req *wire.RowTaskRequest) (*wire.RowTaskResponse, error) {
	task, err := wire.RequestToRowTask(req)
	if err != nil {
		w.failed.Add(1)
		return nil, status.Errorf(codes.InvalidArgument, "invalid row task: %v", err)
	}
	if err := ctx.Err(); err != nil {
		w.failed.Add(1)
		return nil, status.FromContextError(err).Err()
	}

	start := time.Now()
	values, err := w.kernel(task.Row, task.B)
	if err != nil {
		w.failed.Add(1)
		return nil, status.Errorf(codes.Internal, "row %d: %v", task.RowIndex, err)
	}
	w.served.Add(1)

	return &wire.RowTaskResponse{
		RowIndex:      task.RowIndex,
		Values:        values,
		MemberID:      w.memberID,
		ComputeMicros: time.Since(start).Microseconds(),
	}, nil
}

// Served returns the number of rows computed successfully.
func (w *WorkerService) Served() int64 {
	return w.served.Load()
}

// Failed returns the number of rejected or failed rows.
func (w *WorkerService) Failed() int64 {
	return w.failed.Load()
}
