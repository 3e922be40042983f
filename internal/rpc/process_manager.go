package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ProcessManagerServiceName = "drunc.ProcessManager"

const (
	ProcessManagerBootFullMethodName     = "/drunc.ProcessManager/boot"
	ProcessManagerKillFullMethodName     = "/drunc.ProcessManager/kill"
	ProcessManagerPsFullMethodName       = "/drunc.ProcessManager/ps"
	ProcessManagerFlushFullMethodName    = "/drunc.ProcessManager/flush"
	ProcessManagerRestartFullMethodName  = "/drunc.ProcessManager/restart"
	ProcessManagerLogsFullMethodName     = "/drunc.ProcessManager/logs"
	ProcessManagerDescribeFullMethodName = "/drunc.ProcessManager/describe"
)

type ProcessManagerClient interface {
	Boot(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error)
	Kill(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error)
	Ps(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error)
	Flush(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error)
	Restart(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error)
	Logs(ctx context.Context, in *Request, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Response], error)
	Describe(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error)
}

type processManagerClient struct {
	cc grpc.ClientConnInterface
}

func NewProcessManagerClient(cc grpc.ClientConnInterface) ProcessManagerClient {
	return &processManagerClient{cc: cc}
}

func (c *processManagerClient) Boot(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	return invoke(ctx, c.cc, ProcessManagerBootFullMethodName, in, opts...)
}

func (c *processManagerClient) Kill(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	return invoke(ctx, c.cc, ProcessManagerKillFullMethodName, in, opts...)
}

func (c *processManagerClient) Ps(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	return invoke(ctx, c.cc, ProcessManagerPsFullMethodName, in, opts...)
}

func (c *processManagerClient) Flush(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	return invoke(ctx, c.cc, ProcessManagerFlushFullMethodName, in, opts...)
}

func (c *processManagerClient) Restart(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	return invoke(ctx, c.cc, ProcessManagerRestartFullMethodName, in, opts...)
}

func (c *processManagerClient) Describe(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	return invoke(ctx, c.cc, ProcessManagerDescribeFullMethodName, in, opts...)
}

func (c *processManagerClient) Logs(ctx context.Context, in *Request, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Response], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ProcessManagerServiceDesc.Streams[0], ProcessManagerLogsFullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Request, Response]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ProcessManagerServer is implemented by in-process fakes of the remote process manager.
type ProcessManagerServer interface {
	Boot(context.Context, *Request) (*Response, error)
	Kill(context.Context, *Request) (*Response, error)
	Ps(context.Context, *Request) (*Response, error)
	Flush(context.Context, *Request) (*Response, error)
	Restart(context.Context, *Request) (*Response, error)
	Logs(*Request, grpc.ServerStreamingServer[Response]) error
	Describe(context.Context, *Request) (*Response, error)
}

type UnimplementedProcessManagerServer struct{}

func (UnimplementedProcessManagerServer) Boot(context.Context, *Request) (*Response, error) {
	return nil, unimplemented("boot")
}
func (UnimplementedProcessManagerServer) Kill(context.Context, *Request) (*Response, error) {
	return nil, unimplemented("kill")
}
func (UnimplementedProcessManagerServer) Ps(context.Context, *Request) (*Response, error) {
	return nil, unimplemented("ps")
}
func (UnimplementedProcessManagerServer) Flush(context.Context, *Request) (*Response, error) {
	return nil, unimplemented("flush")
}
func (UnimplementedProcessManagerServer) Restart(context.Context, *Request) (*Response, error) {
	return nil, unimplemented("restart")
}
func (UnimplementedProcessManagerServer) Logs(*Request, grpc.ServerStreamingServer[Response]) error {
	return unimplemented("logs")
}
func (UnimplementedProcessManagerServer) Describe(context.Context, *Request) (*Response, error) {
	return nil, unimplemented("describe")
}

func processManagerLogsHandler(srv any, stream grpc.ServerStream) error {
	m := new(Request)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ProcessManagerServer).Logs(m, &grpc.GenericServerStream[Request, Response]{ServerStream: stream})
}

var ProcessManagerServiceDesc = grpc.ServiceDesc{
	ServiceName: ProcessManagerServiceName,
	HandlerType: (*ProcessManagerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "boot", Handler: unaryHandler(ProcessManagerBootFullMethodName, ProcessManagerServer.Boot)},
		{MethodName: "kill", Handler: unaryHandler(ProcessManagerKillFullMethodName, ProcessManagerServer.Kill)},
		{MethodName: "ps", Handler: unaryHandler(ProcessManagerPsFullMethodName, ProcessManagerServer.Ps)},
		{MethodName: "flush", Handler: unaryHandler(ProcessManagerFlushFullMethodName, ProcessManagerServer.Flush)},
		{MethodName: "restart", Handler: unaryHandler(ProcessManagerRestartFullMethodName, ProcessManagerServer.Restart)},
		{MethodName: "describe", Handler: unaryHandler(ProcessManagerDescribeFullMethodName, ProcessManagerServer.Describe)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "logs",
			Handler:       processManagerLogsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "process_manager",
}

func RegisterProcessManagerServer(s grpc.ServiceRegistrar, srv ProcessManagerServer) {
	s.RegisterService(&ProcessManagerServiceDesc, srv)
}
