// Package worker 实现工作节点：注册到协调者、周期性心跳、计算行任务、退出时离开集群。
package worker

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
	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

// State 是工作节点的运行状态。
type State string

const (
	StateStopped    State = "stopped"
	StateRunning    State = "running"
	StateRegistered State = "registered"
)

// Config 保存工作节点的配置信息。
type Config struct {
	// ID 是节点的唯一标识符，为空时自动生成。
	ID string

	// Address 是 gRPC 服务监听地址。
	Address string

	// AdvertiseAddress 是注册到集群的地址，为空时使用实际监听地址。
	AdvertiseAddress string

	// Labels 是节点的键值标签。
	Labels map[string]string

	// HeartbeatInterval 是心跳发送间隔，协调者下发的值优先。
	HeartbeatInterval time.Duration

	// Server 是 gRPC 服务配置，Address 字段会被覆盖。
	Server *server.Config
}

// DefaultConfig 返回默认的工作节点配置。
func DefaultConfig() *Config {
	return &Config{
		Address:           ":9091",
		HeartbeatInterval: 5 * time.Second,
	}
}

// joiner 由能返回协调者下发参数的成员实现（gRPC 协调者客户端）。
type joiner interface {
	Join(ctx context.Context, member *types.MemberInfo) (*grpcclient.Registration, error)
}

// Node 是一个工作节点。
type Node struct {
	config     *Config
	membership cluster.Membership
	service    *server.WorkerService
	grpcServer *server.Server

	info     *types.MemberInfo
	state    atomic.Value // State
	interval time.Duration

	heartbeatCancel context.CancelFunc
	heartbeatDone   chan struct{}
	lastHeartbeat   atomic.Int64

	mu       sync.Mutex
	stopOnce sync.Once
}

// NewNode 创建工作节点，membership 通常是协调者的 gRPC 客户端。
func NewNode(config *Config, membership cluster.Membership) *Node {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ID == "" {
		config.ID = "worker-" + uuid.NewString()[:8]
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}

	n := &Node{
		config:     config,
		membership: membership,
		service:    server.NewWorkerService(config.ID, nil),
		interval:   config.HeartbeatInterval,
	}
	n.state.Store(StateStopped)
	return n
}

// ID 返回节点标识符。
func (n *Node) ID() string {
	return n.config.ID
}

// State 返回当前状态。
func (n *Node) State() State {
	return n.state.Load().(State)
}

// Info 返回注册信息，启动前为 nil。
func (n *Node) Info() *types.MemberInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.info
}

// Served 返回已成功计算的行数。
func (n *Node) Served() int64 {
	return n.service.Served()
}

// Start 启动 gRPC 服务、注册到集群并开始心跳。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.State() != StateStopped {
		return fmt.Errorf("工作节点已启动: %s", n.config.ID)
	}

	srvCfg := server.DefaultConfig()
	if n.config.Server != nil {
		copied := *n.config.Server
		srvCfg = &copied
	}
	srvCfg.Address = n.config.Address
	n.grpcServer = server.NewServer(srvCfg)
	wire.RegisterWorkerServiceServer(n.grpcServer.Registrar(), n.service)

	if err := n.grpcServer.Start(ctx); err != nil {
		return fmt.Errorf("启动 gRPC 服务失败: %w", err)
	}
	n.state.Store(StateRunning)

	advertise := n.config.AdvertiseAddress
	if advertise == "" {
		advertise = n.grpcServer.Addr().String()
	}
	n.info = &types.MemberInfo{
		ID:       n.config.ID,
		Address:  advertise,
		Labels:   n.config.Labels,
		JoinedAt: time.Now(),
	}

	if err := n.register(ctx); err != nil {
		_ = n.grpcServer.Stop(ctx)
		n.state.Store(StateStopped)
		return err
	}
	n.state.Store(StateRegistered)

	hbCtx, cancel := context.WithCancel(context.Background())
	n.heartbeatCancel = cancel
	n.heartbeatDone = make(chan struct{})
	go n.heartbeatLoop(hbCtx)

	logger.Info("工作节点已启动",
		zap.String("member", n.info.ID),
		zap.String("address", n.info.Address),
		zap.Duration("heartbeat_interval", n.interval))
	return nil
}

func (n *Node) register(ctx context.Context) error {
	if j, ok := n.membership.(joiner); ok {
		reg, err := j.Join(ctx, n.info)
		if err != nil {
			return fmt.Errorf("注册到协调者失败: %w", err)
		}
		if reg.HeartbeatInterval > 0 {
			n.interval = reg.HeartbeatInterval
		}
		return nil
	}
	if err := n.membership.Register(ctx, n.info); err != nil {
		return fmt.Errorf("注册到集群失败: %w", err)
	}
	return nil
}

// heartbeatLoop 周期性发送心跳，成员被淘汰后重新注册。
func (n *Node) heartbeatLoop(ctx context.Context) {
	defer close(n.heartbeatDone)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.beat(ctx)
		}
	}
}

func (n *Node) beat(ctx context.Context) {
	err := n.membership.Heartbeat(ctx, n.config.ID)
	switch {
	case err == nil:
		n.lastHeartbeat.Store(time.Now().UnixMilli())
	case errors.Is(err, cluster.ErrMemberNotFound):
		logger.Warn("成员已被淘汰，重新注册", zap.String("member", n.config.ID))
		if rerr := n.membership.Register(ctx, n.info); rerr != nil && ctx.Err() == nil {
			logger.Error("重新注册失败", zap.String("member", n.config.ID), zap.Error(rerr))
		}
	case ctx.Err() == nil:
		logger.Warn("心跳失败", zap.String("member", n.config.ID), zap.Error(err))
	}
}

// LastHeartbeat 返回最近一次成功心跳的时间。
func (n *Node) LastHeartbeat() time.Time {
	ms := n.lastHeartbeat.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Stop 停止心跳、离开集群并关闭 gRPC 服务。只有第一次调用生效。
func (n *Node) Stop(ctx context.Context) error {
	var err error
	n.stopOnce.Do(func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		if n.heartbeatCancel != nil {
			n.heartbeatCancel()
			<-n.heartbeatDone
		}

		if n.State() == StateRegistered {
			if lerr := n.membership.Leave(ctx, n.config.ID); lerr != nil && !errors.Is(lerr, cluster.ErrMemberNotFound) {
				err = fmt.Errorf("离开集群失败: %w", lerr)
			}
		}

		if n.grpcServer != nil {
			if serr := n.grpcServer.Stop(ctx); serr != nil && err == nil {
				err = serr
			}
		}

		n.state.Store(StateStopped)
		logger.Info("工作节点已停止", zap.String("member", n.config.ID))
	})
	return err
}
