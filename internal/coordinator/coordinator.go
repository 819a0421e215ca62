// Package coordinator runs the process that owns cluster membership: the gRPC
// coordinator service, the status API, the liveness sweeper, and the distributed
// executor with its optional in-process workers.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	grpcclient "yqhp/matmul-engine/api/grpc/client"
	"yqhp/matmul-engine/api/grpc/server"
	"yqhp/matmul-engine/api/grpc/wire"
	"yqhp/matmul-engine/api/rest"
	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/internal/distributed"
	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

// Config holds the configuration for a coordinator node.
type Config struct {
	// ID is the unique identifier for this coordinator.
	ID string

	// GRPC configures the coordinator service. Nil disables it.
	GRPC *server.Config

	// REST configures the status API. Nil disables it.
	REST *rest.Config

	// HeartbeatInterval is advertised to registering workers.
	HeartbeatInterval time.Duration

	// LivenessTimeout is advertised to registering workers.
	LivenessTimeout time.Duration

	// SweepInterval is how often the in-memory backend evicts stale members.
	SweepInterval time.Duration

	// LocalWorkers is the number of in-process members to register.
	LocalWorkers int

	// Executor configures the distributed executor.
	Executor distributed.Options

	// Client configures connections to remote workers.
	Client *grpcclient.Config
}

// DefaultConfig returns a default coordinator configuration.
func DefaultConfig() *Config {
	return &Config{
		ID:                uuid.New().String(),
		GRPC:              server.DefaultConfig(),
		REST:              rest.DefaultConfig(),
		HeartbeatInterval: 5 * time.Second,
		LivenessTimeout:   cluster.DefaultLivenessTimeout,
		SweepInterval:     cluster.DefaultSweepInterval,
		Executor:          distributed.DefaultOptions(),
		Client:            grpcclient.DefaultConfig(),
	}
}

// LocalMemberID returns the ID of the i-th in-process member.
func LocalMemberID(coordinatorID string, i int) string {
	short := coordinatorID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("local-%s-%d", short, i)
}

// Node is a coordinator process.
type Node struct {
	config     *Config
	membership cluster.Membership

	sweeper    *cluster.Sweeper
	grpcServer *server.Server
	restServer *rest.Server
	executor   *distributed.Executor
	local      *distributed.LocalTransport
	localIDs   []string

	restErr chan error
	quit    chan struct{}
	started atomic.Bool
	mu      sync.Mutex
	stopped sync.Once
}

// NewNode creates a coordinator over membership.
func NewNode(config *Config, membership cluster.Membership) (*Node, error) {
	if membership == nil {
		return nil, errors.New("membership cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	return &Node{
		config:     config,
		membership: membership,
		local:      distributed.NewLocalTransport(),
		restErr:    make(chan error, 1),
		quit:       make(chan struct{}),
	}, nil
}

// Membership returns the cluster view.
func (n *Node) Membership() cluster.Membership {
	return n.membership
}

// Executor returns the distributed executor. It is nil before Start.
func (n *Node) Executor() *distributed.Executor {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.executor
}

// LocalTransport returns the transport used for in-process members.
func (n *Node) LocalTransport() *distributed.LocalTransport {
	return n.local
}

// GRPCAddr returns the coordinator service address, or "" when disabled or stopped.
func (n *Node) GRPCAddr() string {
	if n.grpcServer == nil || n.grpcServer.Addr() == nil {
		return ""
	}
	return n.grpcServer.Addr().String()
}

// Start brings up every configured component.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started.Load() {
		return fmt.Errorf("coordinator already started")
	}

	if s, ok := n.membership.(cluster.Sweepable); ok {
		sweeper, err := cluster.NewSweeper(s, n.config.SweepInterval, nil)
		if err != nil {
			return err
		}
		sweeper.Start()
		n.sweeper = sweeper
	}

	exec, err := distributed.New(n.membership,
		distributed.NewMuxTransport(n.local, grpcclient.NewWorkerTransport(n.config.Client)),
		n.config.Executor)
	if err != nil {
		n.teardown(ctx)
		return err
	}
	n.executor = exec

	if n.config.GRPC != nil {
		n.grpcServer = server.NewServer(n.config.GRPC)
		wire.RegisterCoordinatorServiceServer(n.grpcServer.Registrar(),
			server.NewCoordinatorService(n.membership, n.config.HeartbeatInterval, n.config.LivenessTimeout))
		if err := n.grpcServer.Start(ctx); err != nil {
			n.teardown(ctx)
			return err
		}
	}

	if n.config.REST != nil {
		n.restServer = rest.NewServer(n.membership, exec, n.config.REST)
		go func() {
			if err := n.restServer.Start(); err != nil {
				logger.Error("REST server error", zap.Error(err))
				n.restErr <- err
			}
		}()
	}

	for i := 0; i < n.config.LocalWorkers; i++ {
		id := LocalMemberID(n.config.ID, i)
		member := &types.MemberInfo{
			ID:      id,
			Address: distributed.LocalAddress(id),
			Labels:  map[string]string{"kind": "local"},
		}
		if err := n.membership.Register(ctx, member); err != nil {
			n.teardown(ctx)
			return fmt.Errorf("failed to register local worker %s: %w", id, err)
		}
		n.localIDs = append(n.localIDs, id)
	}
	if len(n.localIDs) > 0 {
		go n.keepLocalAlive(append([]string(nil), n.localIDs...))
	}

	n.started.Store(true)
	logger.Info("coordinator started",
		zap.String("id", n.config.ID),
		zap.String("grpc", n.GRPCAddr()),
		zap.Int("local_workers", len(n.localIDs)))
	return nil
}

// keepLocalAlive heartbeats the in-process members until the node stops.
func (n *Node) keepLocalAlive(ids []string) {
	interval := n.config.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultConfig().HeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.quit:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		for _, id := range ids {
			if err := n.membership.Heartbeat(ctx, id); err != nil && n.started.Load() {
				logger.Warn("local worker heartbeat failed", zap.String("member", id), zap.Error(err))
			}
		}
		cancel()
	}
}

// RESTErrors reports a status API that failed to serve.
func (n *Node) RESTErrors() <-chan error {
	return n.restErr
}

// Stop shuts every component down. Only the first call has an effect.
func (n *Node) Stop(ctx context.Context) error {
	var err error
	n.stopped.Do(func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.started.Store(false)
		close(n.quit)
		err = n.teardown(ctx)
		logger.Info("coordinator stopped", zap.String("id", n.config.ID))
	})
	return err
}

// teardown must be called with mu held.
func (n *Node) teardown(ctx context.Context) error {
	var errs []error

	for _, id := range n.localIDs {
		if err := n.membership.Leave(ctx, id); err != nil && !errors.Is(err, cluster.ErrMemberNotFound) {
			errs = append(errs, err)
		}
	}
	n.localIDs = nil

	if n.restServer != nil {
		if err := n.restServer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop REST server: %w", err))
		}
	}
	if n.grpcServer != nil {
		if err := n.grpcServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if n.executor != nil {
		if err := n.executor.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.sweeper != nil {
		if err := n.sweeper.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop sweeper: %w", err))
		}
		n.sweeper = nil
	}
	return errors.Join(errs...)
}
