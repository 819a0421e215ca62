package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names.
const (
	WorkerServiceName      = "matmul.v1.WorkerService"
	CoordinatorServiceName = "matmul.v1.CoordinatorService"

	ComputeRowMethod  = "/" + WorkerServiceName + "/ComputeRow"
	RegisterMethod    = "/" + CoordinatorServiceName + "/Register"
	HeartbeatMethod   = "/" + CoordinatorServiceName + "/Heartbeat"
	LeaveMethod       = "/" + CoordinatorServiceName + "/Leave"
	ListMembersMethod = "/" + CoordinatorServiceName + "/ListMembers"
)

// WorkerServiceServer is implemented by worker processes.
type WorkerServiceServer interface {
	ComputeRow(ctx context.Context, req *RowTaskRequest) (*RowTaskResponse, error)
}

// CoordinatorServiceServer is implemented by the coordinator process.
type CoordinatorServiceServer interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error)
	Leave(ctx context.Context, req *LeaveRequest) (*LeaveResponse, error)
	ListMembers(ctx context.Context, req *ListMembersRequest) (*ListMembersResponse, error)
}

// RegisterWorkerServiceServer registers srv on s.
func RegisterWorkerServiceServer(s grpc.ServiceRegistrar, srv WorkerServiceServer) {
	s.RegisterService(&WorkerServiceDesc, srv)
}

// RegisterCoordinatorServiceServer registers srv on s.
func RegisterCoordinatorServiceServer(s grpc.ServiceRegistrar, srv CoordinatorServiceServer) {
	s.RegisterService(&CoordinatorServiceDesc, srv)
}

// WorkerServiceDesc describes matmul.v1.WorkerService.
var WorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: WorkerServiceName,
	HandlerType: (*WorkerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputeRow", Handler: computeRowHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matmul/v1/worker.json",
}

// CoordinatorServiceDesc describes matmul.v1.CoordinatorService.
var CoordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: CoordinatorServiceName,
	HandlerType: (*CoordinatorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "Heartbeat", Handler: heartbeatHandler},
		{MethodName: "Leave", Handler: leaveHandler},
		{MethodName: "ListMembers", Handler: listMembersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matmul/v1/coordinator.json",
}

func computeRowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RowTaskRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).ComputeRow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ComputeRowMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorkerServiceServer).ComputeRow(ctx, req.(*RowTaskRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServiceServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RegisterMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServiceServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func heartbeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServiceServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HeartbeatMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServiceServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func leaveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LeaveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServiceServer).Leave(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LeaveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServiceServer).Leave(ctx, req.(*LeaveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listMembersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListMembersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServiceServer).ListMembers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListMembersMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoordinatorServiceServer).ListMembers(ctx, req.(*ListMembersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// WorkerServiceClient calls matmul.v1.WorkerService.
type WorkerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkerServiceClient wraps cc.
func NewWorkerServiceClient(cc grpc.ClientConnInterface) *WorkerServiceClient {
	return &WorkerServiceClient{cc: cc}
}

// ComputeRow invokes the ComputeRow method.
func (c *WorkerServiceClient) ComputeRow(ctx context.Context, in *RowTaskRequest, opts ...grpc.CallOption) (*RowTaskResponse, error) {
	out := new(RowTaskResponse)
	if err := c.cc.Invoke(ctx, ComputeRowMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// CoordinatorServiceClient calls matmul.v1.CoordinatorService.
type CoordinatorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCoordinatorServiceClient wraps cc.
func NewCoordinatorServiceClient(cc grpc.ClientConnInterface) *CoordinatorServiceClient {
	return &CoordinatorServiceClient{cc: cc}
}

// Register invokes the Register method.
func (c *CoordinatorServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.cc.Invoke(ctx, RegisterMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Heartbeat invokes the Heartbeat method.
func (c *CoordinatorServiceClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, HeartbeatMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Leave invokes the Leave method.
func (c *CoordinatorServiceClient) Leave(ctx context.Context, in *LeaveRequest, opts ...grpc.CallOption) (*LeaveResponse, error) {
	out := new(LeaveResponse)
	if err := c.cc.Invoke(ctx, LeaveMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMembers invokes the ListMembers method.
func (c *CoordinatorServiceClient) ListMembers(ctx context.Context, in *ListMembersRequest, opts ...grpc.CallOption) (*ListMembersResponse, error) {
	out := new(ListMembersResponse)
	if err := c.cc.Invoke(ctx, ListMembersMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

// ServerOption forces the JSON codec on a gRPC server.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}
