package telemetry

import (
	"context"
	"sync"
)

var (
	globalTracer Tracer = Noop()
	mu           sync.RWMutex
)

// Init installs tracer as the global tracer. Optional: untouched, the
// harness runs with Noop and pays nothing for tracing.
func Init(tracer Tracer) {
	mu.Lock()
	defer mu.Unlock()
	globalTracer = tracer
}

// Get returns the current global tracer.
func Get() Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return globalTracer
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return Get().StartSpan(ctx, name, opts...)
}

// Shutdown shuts down the global tracer.
func Shutdown(ctx context.Context) error {
	return Get().Shutdown(ctx)
}

// IsEnabled reports whether the global tracer is a real exporter.
func IsEnabled() bool {
	return Get().IsEnabled()
}
