package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ControllerServiceName = "drunc.Controller"

// Controller command names.
const (
	CmdTakeControl             = "take_control"
	CmdSurrenderControl        = "surrender_control"
	CmdWhoIsInCharge           = "who_is_in_charge"
	CmdAddToBroadcastList      = "add_to_broadcast_list"
	CmdRemoveFromBroadcastList = "remove_from_broadcast_list"
	CmdLs                      = "ls"
)

func controllerMethod(cmd string) string {
	return "/" + ControllerServiceName + "/" + cmd
}

// ControllerClient is the client API of the controller's command surface.
type ControllerClient interface {
	// Command issues a controller command by name.
	Command(ctx context.Context, name string, in *Request, opts ...grpc.CallOption) (*Response, error)
}

type controllerClient struct {
	cc grpc.ClientConnInterface
}

func NewControllerClient(cc grpc.ClientConnInterface) ControllerClient {
	return &controllerClient{cc: cc}
}

func (c *controllerClient) Command(ctx context.Context, name string, in *Request, opts ...grpc.CallOption) (*Response, error) {
	return invoke(ctx, c.cc, controllerMethod(name), in, opts...)
}

// ControllerServer is the server API of the controller's command surface.
// Servers live outside this module; it is used by in-process fakes.
type ControllerServer interface {
	TakeControl(context.Context, *Request) (*Response, error)
	SurrenderControl(context.Context, *Request) (*Response, error)
	WhoIsInCharge(context.Context, *Request) (*Response, error)
	AddToBroadcastList(context.Context, *Request) (*Response, error)
	RemoveFromBroadcastList(context.Context, *Request) (*Response, error)
	Ls(context.Context, *Request) (*Response, error)
}

// UnimplementedControllerServer answers every command with codes.Unimplemented.
type UnimplementedControllerServer struct{}

func unimplemented(cmd string) error {
	return status.Error(codes.Unimplemented, fmt.Sprintf("method %s not implemented", cmd))
}

func (UnimplementedControllerServer) TakeControl(context.Context, *Request) (*Response, error) {
	return nil, unimplemented(CmdTakeControl)
}
func (UnimplementedControllerServer) SurrenderControl(context.Context, *Request) (*Response, error) {
	return nil, unimplemented(CmdSurrenderControl)
}
func (UnimplementedControllerServer) WhoIsInCharge(context.Context, *Request) (*Response, error) {
	return nil, unimplemented(CmdWhoIsInCharge)
}
func (UnimplementedControllerServer) AddToBroadcastList(context.Context, *Request) (*Response, error) {
	return nil, unimplemented(CmdAddToBroadcastList)
}
func (UnimplementedControllerServer) RemoveFromBroadcastList(context.Context, *Request) (*Response, error) {
	return nil, unimplemented(CmdRemoveFromBroadcastList)
}
func (UnimplementedControllerServer) Ls(context.Context, *Request) (*Response, error) {
	return nil, unimplemented(CmdLs)
}

func controllerUnary(cmd string, call func(ControllerServer, context.Context, *Request) (*Response, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: cmd,
		Handler:    unaryHandler(controllerMethod(cmd), call),
	}
}

var ControllerServiceDesc = grpc.ServiceDesc{
	ServiceName: ControllerServiceName,
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		controllerUnary(CmdTakeControl, ControllerServer.TakeControl),
		controllerUnary(CmdSurrenderControl, ControllerServer.SurrenderControl),
		controllerUnary(CmdWhoIsInCharge, ControllerServer.WhoIsInCharge),
		controllerUnary(CmdAddToBroadcastList, ControllerServer.AddToBroadcastList),
		controllerUnary(CmdRemoveFromBroadcastList, ControllerServer.RemoveFromBroadcastList),
		controllerUnary(CmdLs, ControllerServer.Ls),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "controller",
}

func RegisterControllerServer(s grpc.ServiceRegistrar, srv ControllerServer) {
	s.RegisterService(&ControllerServiceDesc, srv)
}
