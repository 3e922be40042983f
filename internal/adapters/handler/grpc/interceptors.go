package grpc

import (
	"context"
	"time"

	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	rpcTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drunc_client_rpc_total",
			Help: "Total number of remote calls by method and status code",
		},
		[]string{"method", "code"},
	)

	rpcDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drunc_client_rpc_duration_seconds",
			Help:    "Remote call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func unaryClientInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	ctx, span := tracing.StartSpan(ctx, method)
	defer span.End()
	ctx = injectTrace(ctx)

	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)
	observe(ctx, method, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return err
}

// streamClientInterceptor measures stream setup only.
func streamClientInterceptor(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	ctx, span := tracing.StartSpan(ctx, method)
	defer span.End()
	ctx = injectTrace(ctx)

	start := time.Now()
	stream, err := streamer(ctx, desc, cc, method, opts...)
	observe(ctx, method, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return stream, err
}

func observe(ctx context.Context, method string, start time.Time, err error) {
	code := status.Code(err)
	rpcTotal.WithLabelValues(method, code.String()).Inc()
	rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	logger.DebugContext(ctx, "Remote call", "method", method, "code", code.String(), "duration", time.Since(start))
}

// mdCarrier lets the OpenTelemetry propagator write into gRPC metadata.
type mdCarrier metadata.MD

func (c mdCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c mdCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c mdCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func injectTrace(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	otel.GetTextMapPropagator().Inject(ctx, mdCarrier(md))
	return metadata.NewOutgoingContext(ctx, md)
}
