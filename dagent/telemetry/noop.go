package telemetry

import "context"

// noopTracer is the default tracer: zero overhead, used whenever no real
// exporter has been installed via Init.
type noopTracer struct{}

type noopSpan struct{}

// Noop returns the no-op tracer.
func Noop() Tracer { return &noopTracer{} }

func (t *noopTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (t *noopTracer) Shutdown(ctx context.Context) error { return nil }

func (t *noopTracer) IsEnabled() bool { return false }

func (s *noopSpan) SetAttributes(attrs ...Attribute)        {}
func (s *noopSpan) SetStatus(status Status, description string) {}
func (s *noopSpan) RecordError(err error)                   {}
func (s *noopSpan) End()                                    {}
