package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"yqhp/matmul-engine/api/grpc/wire"
	"yqhp/matmul-engine/internal/distributed"
	"yqhp/matmul-engine/pkg/types"
)

// WorkerTransport sends row tasks to remote workers, keeping one connection per address.
type WorkerTransport struct {
	config *Config

	mu     sync.Mutex
	conns  map[string]*grpc.ClientConn
	closed bool
}

var _ distributed.Transport = (*WorkerTransport)(nil)

// NewWorkerTransport creates a transport.
func NewWorkerTransport(config *Config) *WorkerTransport {
	if config == nil {
		config = DefaultConfig()
	}
	return &WorkerTransport{
		config: config,
		conns:  make(map[string]*grpc.ClientConn),
	}
}

func (t *WorkerTransport) conn(address string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errors.New("worker transport is closed")
	}
	if conn, ok := t.conns[address]; ok {
		return conn, nil
	}
	conn, err := t.config.dial(address)
	if err != nil {
		return nil, err
	}
	t.conns[address] = conn
	return conn, nil
}

// Execute implements distributed.Transport.
func (t *WorkerTransport) Execute(ctx context.Context, member *types.MemberInfo, task types.RowTask) ([]float64, error) {
	conn, err := t.conn(member.Address)
	if err != nil {
		return nil, err
	}

	resp, err := wire.NewWorkerServiceClient(conn).ComputeRow(ctx, wire.RowTaskToRequest(task, member.ID))
	if err != nil {
		if st, ok := status.FromError(err); ok {
			switch st.Code() {
			case codes.DeadlineExceeded:
				return nil, fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
			case codes.Canceled:
				return nil, fmt.Errorf("%w: %s", context.Canceled, st.Message())
			}
			return nil, fmt.Errorf("worker %s: %s: %s", member.ID, st.Code(), st.Message())
		}
		return nil, fmt.Errorf("worker %s: %w", member.ID, err)
	}
	if resp.RowIndex != task.RowIndex {
		return nil, fmt.Errorf("worker %s answered row %d for row %d", member.ID, resp.RowIndex, task.RowIndex)
	}
	return resp.Values, nil
}

// Close implements distributed.Transport.
func (t *WorkerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	var errs []error
	for addr, conn := range t.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", addr, err))
		}
	}
	t.conns = make(map[string]*grpc.ClientConn)
	return errors.Join(errs...)
}
