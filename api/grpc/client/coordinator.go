package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"yqhp/matmul-engine/api/grpc/wire"
	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

// Registration is the coordinator's answer to an accepted Register call.
type Registration struct {
	MemberID          string
	HeartbeatInterval time.Duration
	LivenessTimeout   time.Duration
}

// CoordinatorClient talks to a coordinator. It also satisfies cluster.Membership,
// so a process can drive a remote cluster view.
type CoordinatorClient struct {
	config *Config
	conn   *grpc.ClientConn
	client *wire.CoordinatorServiceClient
	poll   time.Duration
}

var _ cluster.Membership = (*CoordinatorClient)(nil)

// NewCoordinatorClient creates a client for the coordinator at address.
func NewCoordinatorClient(address string, config *Config) (*CoordinatorClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	conn, err := config.dial(address)
	if err != nil {
		return nil, err
	}
	return &CoordinatorClient{
		config: config,
		conn:   conn,
		client: wire.NewCoordinatorServiceClient(conn),
		poll:   time.Second,
	}, nil
}

func (c *CoordinatorClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.CallTimeout)
}

// Join registers member and returns the advertised intervals.
func (c *CoordinatorClient) Join(ctx context.Context, member *types.MemberInfo) (*Registration, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.Register(ctx, &wire.RegisterRequest{Member: wire.MemberToWire(member)})
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", fromStatus(err))
	}
	if !resp.Accepted {
		return nil, fmt.Errorf("registration rejected: %s", resp.Error)
	}
	return &Registration{
		MemberID:          resp.MemberID,
		HeartbeatInterval: time.Duration(resp.HeartbeatIntervalMs) * time.Millisecond,
		LivenessTimeout:   time.Duration(resp.LivenessTimeoutMs) * time.Millisecond,
	}, nil
}

// Register implements cluster.Membership.
func (c *CoordinatorClient) Register(ctx context.Context, member *types.MemberInfo) error {
	_, err := c.Join(ctx, member)
	return err
}

// Heartbeat implements cluster.Membership.
func (c *CoordinatorClient) Heartbeat(ctx context.Context, memberID string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	_, err := c.client.Heartbeat(ctx, &wire.HeartbeatRequest{MemberID: memberID, Timestamp: time.Now().UnixMilli()})
	return fromStatus(err)
}

// Leave implements cluster.Membership.
func (c *CoordinatorClient) Leave(ctx context.Context, memberID string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	_, err := c.client.Leave(ctx, &wire.LeaveRequest{MemberID: memberID})
	return fromStatus(err)
}

// Members implements cluster.Membership.
func (c *CoordinatorClient) Members(ctx context.Context) ([]*types.MemberInfo, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.ListMembers(ctx, &wire.ListMembersRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", fromStatus(err))
	}
	return wire.WireToMembers(resp.Members), nil
}

// Size implements cluster.Membership.
func (c *CoordinatorClient) Size(ctx context.Context) (int, error) {
	members, err := c.Members(ctx)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// Watch implements cluster.Membership by polling ListMembers.
func (c *CoordinatorClient) Watch(ctx context.Context) (<-chan *types.MemberEvent, error) {
	initial, err := c.Members(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan *types.MemberEvent, 100)

	go func() {
		defer close(ch)
		known := make(map[string]*types.MemberInfo, len(initial))
		for _, m := range initial {
			known[m.ID] = m
		}
		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			members, err := c.Members(ctx)
			if err != nil {
				logger.Debug("coordinator poll failed", zap.Error(err))
				continue
			}
			seen := make(map[string]*types.MemberInfo, len(members))
			for _, m := range members {
				seen[m.ID] = m
				if _, ok := known[m.ID]; !ok {
					send(ctx, ch, &types.MemberEvent{Type: types.MemberEventJoined, MemberID: m.ID, Member: m})
				}
			}
			for id, m := range known {
				if _, ok := seen[id]; !ok {
					send(ctx, ch, &types.MemberEvent{Type: types.MemberEventLeft, MemberID: id, Member: m})
				}
			}
			known = seen
		}
	}()
	return ch, nil
}

// Close closes the connection.
func (c *CoordinatorClient) Close() error {
	return c.conn.Close()
}

func send(ctx context.Context, ch chan<- *types.MemberEvent, event *types.MemberEvent) {
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}

// fromStatus maps gRPC status codes back to membership errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", cluster.ErrMemberNotFound, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", cluster.ErrMemberExists, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	default:
		return errors.New(st.Message())
	}
}
