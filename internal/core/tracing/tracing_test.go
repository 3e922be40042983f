package tracing

import (
	"context"
	"testing"
)

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init("drunc-test", "")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if tracer != nil {
		t.Error("Expected no tracer to be installed")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Expected no-op shutdown, got %v", err)
	}
}

func TestStartSpanWithoutInit(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "/drunc.Controller/ls")
	defer span.End()

	if ctx == nil {
		t.Fatal("Expected a context")
	}
	if span.SpanContext().IsValid() {
		t.Error("Expected a non-recording span when tracing is off")
	}
}
