package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/rpc"
	"github.com/google/uuid"
	"google.golang.org/grpc"
)

// ProcessLifecycleDriver is a stateless facade over a remote process manager.
// It is not safe for concurrent use by multiple callers.
type ProcessLifecycleDriver struct {
	client   rpc.ProcessManagerClient
	identity domain.Identity
	logger   *slog.Logger
}

func NewProcessLifecycleDriver(client rpc.ProcessManagerClient, id domain.Identity, l *slog.Logger) *ProcessLifecycleDriver {
	if l == nil {
		l = logger.With("process_driver")
	}
	return &ProcessLifecycleDriver{
		client:   client,
		identity: id,
		logger:   l,
	}
}

func (d *ProcessLifecycleDriver) request(msg rpc.Message) (*rpc.Request, error) {
	return rpc.NewRequest(d.identity, msg)
}

// Boot issues one boot call per request, in order, yielding each started
// instance. The first error ends the sequence and no further request is sent.
func (d *ProcessLifecycleDriver) Boot(ctx context.Context, requests iter.Seq2[*domain.BootRequest, error]) iter.Seq2[*domain.ProcessInstance, error] {
	return func(yield func(*domain.ProcessInstance, error) bool) {
		for br, err := range requests {
			if err != nil {
				yield(nil, err)
				return
			}
			pi, err := d.bootOne(ctx, br)
			if err != nil {
				d.logger.Error("Boot failed", "process", br.ProcessDescription.Metadata.Name, "error", err)
				yield(nil, err)
				return
			}
			if !yield(pi, nil) {
				return
			}
		}
	}
}

func (d *ProcessLifecycleDriver) bootOne(ctx context.Context, br *domain.BootRequest) (*domain.ProcessInstance, error) {
	req, err := d.request(br)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Boot(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("boot %s: %w", br.ProcessDescription.Metadata.Name, err)
	}
	return rpc.Unpack[domain.ProcessInstance](resp.Data)
}

// BootDescriptor compiles d and boots the result. Validation errors are
// returned before any remote call is made.
func (d *ProcessLifecycleDriver) BootDescriptor(ctx context.Context, compiler *BootRequestCompiler, desc domain.Descriptor, session string) (iter.Seq2[*domain.ProcessInstance, error], error) {
	requests, err := compiler.Compile(ctx, desc, d.identity, session)
	if err != nil {
		return nil, err
	}
	return d.Boot(ctx, requests), nil
}

func (d *ProcessLifecycleDriver) Kill(ctx context.Context, q domain.ProcessQuery) (*domain.ProcessInstanceList, error) {
	return d.queryList(ctx, "kill", d.client.Kill, q)
}

func (d *ProcessLifecycleDriver) Ps(ctx context.Context, q domain.ProcessQuery) (*domain.ProcessInstanceList, error) {
	return d.queryList(ctx, "ps", d.client.Ps, q)
}

func (d *ProcessLifecycleDriver) Flush(ctx context.Context, q domain.ProcessQuery) (*domain.ProcessInstanceList, error) {
	return d.queryList(ctx, "flush", d.client.Flush, q)
}

func (d *ProcessLifecycleDriver) Restart(ctx context.Context, q domain.ProcessQuery) (*domain.ProcessInstance, error) {
	resp, err := d.queryCall(ctx, "restart", d.client.Restart, q)
	if err != nil {
		return nil, err
	}
	return rpc.Unpack[domain.ProcessInstance](resp.Data)
}

type unaryCall func(ctx context.Context, in *rpc.Request, opts ...grpc.CallOption) (*rpc.Response, error)

func (d *ProcessLifecycleDriver) queryList(ctx context.Context, name string, call unaryCall, q domain.ProcessQuery) (*domain.ProcessInstanceList, error) {
	resp, err := d.queryCall(ctx, name, call, q)
	if err != nil {
		return nil, err
	}
	return rpc.Unpack[domain.ProcessInstanceList](resp.Data)
}

func (d *ProcessLifecycleDriver) queryCall(ctx context.Context, name string, call unaryCall, q domain.ProcessQuery) (*rpc.Response, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	req, err := d.request(q)
	if err != nil {
		return nil, err
	}
	resp, err := call(ctx, req)
	if err != nil {
		d.logger.Error("Process manager call failed", "command", name, "error", err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return resp, nil
}

// Logs streams log lines until the server closes the stream or the caller
// stops ranging, which cancels the stream.
func (d *ProcessLifecycleDriver) Logs(ctx context.Context, lr domain.LogRequest) iter.Seq2[*domain.LogLine, error] {
	return func(yield func(*domain.LogLine, error) bool) {
		if err := ValidateQuery(lr.Query); err != nil {
			yield(nil, err)
			return
		}
		req, err := d.request(lr)
		if err != nil {
			yield(nil, err)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := d.client.Logs(ctx, req)
		if err != nil {
			yield(nil, fmt.Errorf("logs: %w", err))
			return
		}
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("logs: %w", err))
				return
			}
			line, err := rpc.Unpack[domain.LogLine](resp.Data)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Describe asks the process manager to describe itself.
func (d *ProcessLifecycleDriver) Describe(ctx context.Context) (*domain.Description, error) {
	req, err := d.request(nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Describe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}
	return rpc.Unpack[domain.Description](resp.Data)
}

// ValidateQuery checks that every UUID selector is well formed.
func ValidateQuery(q domain.ProcessQuery) error {
	for _, id := range q.UUIDs {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid process uuid %q: %w", id, err)
		}
	}
	return nil
}
