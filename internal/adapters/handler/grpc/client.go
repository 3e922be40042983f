package grpc

import (
	"fmt"

	"drunc.client/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a long-lived connection to a controller or process manager.
// Every call on it carries tracing, metrics and debug logging.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(unaryClientInterceptor),
		grpc.WithChainStreamInterceptor(streamClientInterceptor),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, nil
}

// ControllerConn bundles a controller connection with its client.
type ControllerConn struct {
	*grpc.ClientConn
	Client rpc.ControllerClient
}

func DialController(addr string, opts ...grpc.DialOption) (*ControllerConn, error) {
	conn, err := Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &ControllerConn{ClientConn: conn, Client: rpc.NewControllerClient(conn)}, nil
}

// ProcessManagerConn bundles a process manager connection with its client.
type ProcessManagerConn struct {
	*grpc.ClientConn
	Client rpc.ProcessManagerClient
}

func DialProcessManager(addr string, opts ...grpc.DialOption) (*ProcessManagerConn, error) {
	conn, err := Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &ProcessManagerConn{ClientConn: conn, Client: rpc.NewProcessManagerClient(conn)}, nil
}
