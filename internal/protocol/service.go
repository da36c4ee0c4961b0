package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "sysinfo.collector.v1.CollectorService"

	SubmitSnapshotMethod = "/" + ServiceName + "/SubmitSnapshot"
	StreamCommandsMethod = "/" + ServiceName + "/StreamCommands"
)

// CollectorServiceServer is implemented by the collector.
type CollectorServiceServer interface {
	SubmitSnapshot(context.Context, *SubmitSnapshotRequest) (*SubmitSnapshotResponse, error)
	StreamCommands(*StreamCommandsRequest, grpc.ServerStreamingServer[Command]) error
}

// UnimplementedCollectorServiceServer can be embedded to get forward
// compatible implementations.
type UnimplementedCollectorServiceServer struct{}

func (UnimplementedCollectorServiceServer) SubmitSnapshot(context.Context, *SubmitSnapshotRequest) (*SubmitSnapshotResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitSnapshot not implemented")
}

func (UnimplementedCollectorServiceServer) StreamCommands(*StreamCommandsRequest, grpc.ServerStreamingServer[Command]) error {
	return status.Error(codes.Unimplemented, "method StreamCommands not implemented")
}

func RegisterCollectorServiceServer(s grpc.ServiceRegistrar, srv CollectorServiceServer) {
	s.RegisterService(&CollectorServiceDesc, srv)
}

func submitSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitSnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectorServiceServer).SubmitSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitSnapshotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CollectorServiceServer).SubmitSnapshot(ctx, req.(*SubmitSnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamCommandsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamCommandsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CollectorServiceServer).StreamCommands(in, &grpc.GenericServerStream[StreamCommandsRequest, Command]{ServerStream: stream})
}

// CollectorServiceDesc describes the service to grpc.Server.
var CollectorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitSnapshot", Handler: submitSnapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamCommands", Handler: streamCommandsHandler, ServerStreams: true},
	},
	Metadata: "sysinfo/collector/v1/collector.proto",
}

// CollectorServiceClient is the agent side of the service.
type CollectorServiceClient interface {
	SubmitSnapshot(ctx context.Context, in *SubmitSnapshotRequest, opts ...grpc.CallOption) (*SubmitSnapshotResponse, error)
	StreamCommands(ctx context.Context, in *StreamCommandsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Command], error)
}

type collectorServiceClient struct {
	cc   grpc.ClientConnInterface
	opts []grpc.CallOption
}

// NewCollectorServiceClient returns a client that sends every call with
// the given options, typically the codec content subtype.
func NewCollectorServiceClient(cc grpc.ClientConnInterface, opts ...grpc.CallOption) CollectorServiceClient {
	return &collectorServiceClient{cc: cc, opts: opts}
}

func (c *collectorServiceClient) SubmitSnapshot(ctx context.Context, in *SubmitSnapshotRequest, opts ...grpc.CallOption) (*SubmitSnapshotResponse, error) {
	out := new(SubmitSnapshotResponse)
	if err := c.cc.Invoke(ctx, SubmitSnapshotMethod, in, out, append(c.opts, opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectorServiceClient) StreamCommands(ctx context.Context, in *StreamCommandsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Command], error) {
	stream, err := c.cc.NewStream(ctx, &CollectorServiceDesc.Streams[0], StreamCommandsMethod, append(c.opts, opts...)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[StreamCommandsRequest, Command]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
