// Package tracing exports spans for controller and process manager calls
// to an OTLP collector.
package tracing

import (
	"context"
	"fmt"

	"drunc.client/internal/core/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Spans started before Init, or with tracing disabled, come from this
// name on the global no-op provider.
const untracedName = "drunc.client"

var tracer trace.Tracer

// ShutdownFunc flushes pending spans and releases the collector connection.
type ShutdownFunc func(context.Context) error

// Init points the global tracer provider at the collector on otlpEndpoint.
// An empty endpoint leaves tracing off and returns a no-op ShutdownFunc.
func Init(serviceName, otlpEndpoint string) (ShutdownFunc, error) {
	if otlpEndpoint == "" {
		logger.Debug("Tracing disabled, no OTLP endpoint")
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("tracing resource for %s: %w", serviceName, err)
	}

	conn, exporter, err := dialCollector(ctx, otlpEndpoint)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracer = tp.Tracer(serviceName)

	logger.Info("Tracing to collector", "endpoint", otlpEndpoint, "service", serviceName)

	// The batcher drains into the exporter, so the provider stops first.
	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

func dialCollector(ctx context.Context, endpoint string) (*grpc.ClientConn, *otlptrace.Exporter, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial collector %s: %w", endpoint, err)
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("span exporter for %s: %w", endpoint, err)
	}
	return conn, exporter, nil
}

// Get returns the tracer set up by Init, or a no-op one.
func Get() trace.Tracer {
	if tracer == nil {
		return otel.Tracer(untracedName)
	}
	return tracer
}

// StartSpan opens a span named after the remote call it covers.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return Get().Start(ctx, name)
}
