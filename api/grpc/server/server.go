// Package server hosts the gRPC services of the coordinator and worker processes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"yqhp/matmul-engine/api/grpc/wire"
	"yqhp/matmul-engine/pkg/logger"
)

// Config holds the configuration for a gRPC server.
type Config struct {
	// Address is the address to listen on.
	Address string

	// MaxRecvMsgSize is the maximum message size in bytes the server can receive.
	// A row task carries all of B, so this bounds the largest matrix a worker accepts.
	MaxRecvMsgSize int

	// MaxSendMsgSize is the maximum message size in bytes the server can send.
	MaxSendMsgSize int

	// KeepaliveInterval is the server ping interval.
	KeepaliveInterval time.Duration

	// KeepaliveTimeout is how long the server waits for a ping ack.
	KeepaliveTimeout time.Duration
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":9090",
		MaxRecvMsgSize:    64 * 1024 * 1024, // 64MB
		MaxSendMsgSize:    64 * 1024 * 1024, // 64MB
		KeepaliveInterval: 10 * time.Second,
		KeepaliveTimeout:  20 * time.Second,
	}
}

// Server wraps a grpc.Server using the JSON wire codec.
type Server struct {
	config     *Config
	grpcServer *grpc.Server
	listener   net.Listener

	started bool
	mu      sync.RWMutex
}

// NewServer creates a server. Services are registered through Registrar before Start.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	opts := []grpc.ServerOption{
		wire.ServerOption(),
		grpc.MaxRecvMsgSize(config.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(config.MaxSendMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    config.KeepaliveInterval,
			Timeout: config.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             config.KeepaliveInterval / 2,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(loggingInterceptor),
	}

	return &Server{
		config:     config,
		grpcServer: grpc.NewServer(opts...),
	}
}

// Registrar returns the registrar services attach to.
func (s *Server) Registrar() grpc.ServiceRegistrar {
	return s.grpcServer
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	if err := s.Serve(listener); err != nil {
		_ = listener.Close()
		return err
	}
	return nil
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("server already started")
	}
	s.listener = listener
	s.started = true

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	logger.Info("gRPC server listening", zap.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the server gracefully, forcing it when ctx is done first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}

	s.started = false
	return nil
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logger.Debug("gRPC call",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", time.Since(start)))
	return resp, err
}
