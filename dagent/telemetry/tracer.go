// Package telemetry provides the single ambient optional value this
// harness carries regardless of scope (§9): a swappable tracer, defaulting
// to a zero-overhead no-op, built on go.opentelemetry.io/otel's Span/Status
// vocabulary so a real exporter can be dropped in without touching caller
// code.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Attribute is a key/value pair attached to a span.
type Attribute = attribute.KeyValue

// Status mirrors otel's span status codes.
type Status = codes.Code

const (
	StatusUnset = codes.Unset
	StatusOK    = codes.Ok
	StatusError = codes.Error
)

// SpanOption configures a span at creation time.
type SpanOption func(*SpanConfig)

// SpanConfig accumulates options passed to StartSpan.
type SpanConfig struct {
	Attributes []Attribute
}

// WithAttributes attaches attributes at span-start time.
func WithAttributes(attrs ...Attribute) SpanOption {
	return func(c *SpanConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// Span is the narrow span contract callers use.
type Span interface {
	SetAttributes(attrs ...Attribute)
	SetStatus(status Status, description string)
	RecordError(err error)
	End()
}

// Tracer creates spans and manages tracer lifecycle.
type Tracer interface {
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	Shutdown(ctx context.Context) error
	IsEnabled() bool
}
