package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"yqhp/matmul-engine/api/grpc/wire"
	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/pkg/logger"
)

// CoordinatorService exposes cluster membership to workers.
type CoordinatorService struct {
	membership        cluster.Membership
	heartbeatInterval time.Duration
	livenessTimeout   time.Duration
}

var _ wire.CoordinatorServiceServer = (*CoordinatorService)(nil)

// NewCoordinatorService creates the service. The intervals are advertised to registering workers.
func NewCoordinatorService(membership cluster.Membership, heartbeatInterval, livenessTimeout time.Duration) *CoordinatorService {
	return &CoordinatorService{
		membership:        membership,
		heartbeatInterval: heartbeatInterval,
		livenessTimeout:   livenessTimeout,
	}
}

// Register implements wire.CoordinatorServiceServer. A worker re-registering with the
// same ID and address is accepted and its liveness refreshed.
func (c *CoordinatorService) Register(ctx context.Context, req *wire.RegisterRequest) (*wire.RegisterResponse, error) {
	if req == nil || req.Member == nil {
		return nil, status.Error(codes.InvalidArgument, "member cannot be nil")
	}
	info := wire.WireToMember(req.Member)

	err := c.membership.Register(ctx, info)
	if errors.Is(err, cluster.ErrMemberExists) && c.sameAddress(ctx, info.ID, info.Address) {
		err = c.membership.Heartbeat(ctx, info.ID)
	}
	if err != nil {
		logger.Warn("registration rejected", zap.String("member", info.ID), zap.Error(err))
		return &wire.RegisterResponse{Accepted: false, Error: err.Error(), MemberID: info.ID}, nil
	}

	return &wire.RegisterResponse{
		Accepted:            true,
		MemberID:            info.ID,
		HeartbeatIntervalMs: c.heartbeatInterval.Milliseconds(),
		LivenessTimeoutMs:   c.livenessTimeout.Milliseconds(),
	}, nil
}

func (c *CoordinatorService) sameAddress(ctx context.Context, id, address string) bool {
	members, err := c.membership.Members(ctx)
	if err != nil {
		return false
	}
	for _, m := range members {
		if m.ID == id {
			return m.Address == address
		}
	}
	return false
}

// Heartbeat implements wire.CoordinatorServiceServer.
func (c *CoordinatorService) Heartbeat(ctx context.Context, req *wire.HeartbeatRequest) (*wire.HeartbeatResponse, error) {
	if req == nil || req.MemberID == "" {
		return nil, status.Error(codes.InvalidArgument, "member ID cannot be empty")
	}
	if err := c.membership.Heartbeat(ctx, req.MemberID); err != nil {
		return nil, toStatus(err)
	}
	return &wire.HeartbeatResponse{ServerTime: time.Now().UnixMilli()}, nil
}

// Leave implements wire.CoordinatorServiceServer.
func (c *CoordinatorService) Leave(ctx context.Context, req *wire.LeaveRequest) (*wire.LeaveResponse, error) {
	if req == nil || req.MemberID == "" {
		return nil, status.Error(codes.InvalidArgument, "member ID cannot be empty")
	}
	if err := c.membership.Leave(ctx, req.MemberID); err != nil {
		return nil, toStatus(err)
	}
	return &wire.LeaveResponse{}, nil
}

// ListMembers implements wire.CoordinatorServiceServer.
func (c *CoordinatorService) ListMembers(ctx context.Context, req *wire.ListMembersRequest) (*wire.ListMembersResponse, error) {
	members, err := c.membership.Members(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.ListMembersResponse{Members: wire.MembersToWire(members)}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, cluster.ErrMemberNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, cluster.ErrMemberExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
