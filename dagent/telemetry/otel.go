package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// otelTracer adapts an otel trace.Tracer to the Tracer contract, for
// callers that have wired a real exporter via trace.NewTracerProvider.
type otelTracer struct {
	tracer trace.Tracer
}

// NewOtel wraps an otel tracer obtained from a configured TracerProvider.
func NewOtel(tracer trace.Tracer) Tracer {
	return &otelTracer{tracer: tracer}
}

func (t *otelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := &SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	ctx, span := t.tracer.Start(ctx, name)
	if len(cfg.Attributes) > 0 {
		span.SetAttributes(cfg.Attributes...)
	}
	return ctx, &otelSpan{span: span}
}

func (t *otelTracer) Shutdown(ctx context.Context) error { return nil }

func (t *otelTracer) IsEnabled() bool { return true }

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) { s.span.SetAttributes(attrs...) }

func (s *otelSpan) SetStatus(status Status, description string) {
	s.span.SetStatus(status, description)
}

func (s *otelSpan) RecordError(err error) { s.span.RecordError(err) }

func (s *otelSpan) End() { s.span.End() }
