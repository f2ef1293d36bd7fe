package tracing

import (
	"context"
	"testing"
	"time"
)

func TestInitTracer(t *testing.T) {
	ctx := context.Background()

	tp, tracer, err := InitTracer(ctx)
	if err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}
	if tp == nil || tracer == nil {
		t.Fatal("expected provider and tracer")
	}

	_, span := tracer.Start(ctx, "test-span")
	span.End()

	// The exporter dials lazily, so shutdown may fail without a collector.
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = tp.Shutdown(shutdownCtx)
}
