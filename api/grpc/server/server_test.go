package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"yqhp/matmul-engine/api/grpc/wire"
	"yqhp/matmul-engine/internal/cluster"
)

func TestNewServer(t *testing.T) {
	s := NewServer(nil)
	assert.NotNil(t, s)
	assert.Equal(t, ":9090", s.config.Address)
	assert.Nil(t, s.Addr())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServerStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	s := NewServer(cfg)
	wire.RegisterWorkerServiceServer(s.Registrar(), NewWorkerService("w", nil))

	require.NoError(t, s.Start(context.Background()))
	assert.NotNil(t, s.Addr())
	assert.Error(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestWorkerService_ComputeRow(t *testing.T) {
	w := NewWorkerService("worker-1", nil)

	resp, err := w.ComputeRow(context.Background(), &wire.RowTaskRequest{
		RowIndex: 0,
		Row:      []float64{1, 2},
		B:        [][]float64{{5, 6}, {7, 8}},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{19, 22}, resp.Values)
	assert.Equal(t, "worker-1", resp.MemberID)

	_, err = w.ComputeRow(context.Background(), &wire.RowTaskRequest{Row: []float64{1}, B: [][]float64{{1}, {2}}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestWorkerService_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWorkerService("w", nil).ComputeRow(ctx, &wire.RowTaskRequest{Row: []float64{1}, B: [][]float64{{1}}})
	assert.Equal(t, codes.Canceled, status.Code(err))
}

func TestCoordinatorService(t *testing.T) {
	m := cluster.NewInMemoryMembership()
	svc := NewCoordinatorService(m, time.Second, 3*time.Second)
	ctx := context.Background()

	_, err := svc.Register(ctx, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := svc.Register(ctx, &wire.RegisterRequest{Member: &wire.Member{ID: "a", Address: "h:1"}})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, int64(1000), resp.HeartbeatIntervalMs)

	resp, err = svc.Register(ctx, &wire.RegisterRequest{Member: &wire.Member{ID: "a", Address: "h:2"}})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.NotEmpty(t, resp.Error)

	_, err = svc.Heartbeat(ctx, &wire.HeartbeatRequest{MemberID: "ghost"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.Heartbeat(ctx, &wire.HeartbeatRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	list, err := svc.ListMembers(ctx, &wire.ListMembersRequest{})
	require.NoError(t, err)
	require.Len(t, list.Members, 1)

	_, err = svc.Leave(ctx, &wire.LeaveRequest{MemberID: "a"})
	require.NoError(t, err)
	_, err = svc.Leave(ctx, &wire.LeaveRequest{MemberID: "a"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
