// Package client implements the gRPC clients used by workers and by the distributed executor.
package client

import (
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Config holds the configuration for gRPC clients.
type Config struct {
	// CallTimeout bounds unary coordinator calls that have no deadline of their own.
	CallTimeout time.Duration

	// KeepaliveInterval is the client ping interval.
	KeepaliveInterval time.Duration

	// KeepaliveTimeout is how long the client waits for a ping ack.
	KeepaliveTimeout time.Duration

	// MaxMsgSize bounds sent and received messages in bytes.
	MaxMsgSize int

	// DialOptions are appended to the default dial options.
	DialOptions []grpc.DialOption
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() *Config {
	return &Config{
		CallTimeout:       5 * time.Second,
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
		MaxMsgSize:        64 * 1024 * 1024, // 64MB
	}
}

func (c *Config) dial(target string) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.KeepaliveInterval,
			Timeout:             c.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.MaxMsgSize),
			grpc.MaxCallSendMsgSize(c.MaxMsgSize),
		),
	}
	opts = append(opts, c.DialOptions...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	return conn, nil
}
