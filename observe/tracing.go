package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	flow "github.com/seoyhaein/flow-go"
)

const (
	tracerName = "github.com/seoyhaein/flow-go/observe"

	// TracingOrder nests node spans inside Metrics and outside default callbacks.
	TracingOrder = -800
)

// Tracing opens one span per node execution.  The span starts in Before, as a
// child of the span carried by the run context, and ends in Finally.
type Tracing struct {
	tracer trace.Tracer
	spans  sync.Map // spanKey -> trace.Span
}

var _ flow.Callback = (*Tracing)(nil)

type spanKey struct {
	runID  string
	nodeID string
}

// NewTracing returns a Tracing using tp, or the global provider when tp is nil.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{tracer: tp.Tracer(tracerName)}
}

// Order returns TracingOrder.
func (t *Tracing) Order() int { return TracingOrder }

// Before starts the node span.
func (t *Tracing) Before(c *flow.CallbackContext) error {
	attrs := []attribute.KeyValue{
		attribute.String("flow.run.id", c.Run.ID()),
		attribute.String("flow.node.id", c.Node.ID()),
		attribute.String("flow.node.name", c.Node.Name()),
	}
	if c.From != nil {
		attrs = append(attrs, attribute.String("flow.node.from", c.From.ID()))
	}
	if c.Trace != nil {
		attrs = append(attrs, attribute.String("flow.worker", c.Trace.Worker()))
	}
	_, span := t.tracer.Start(c.Run.Context(), "flow.node "+c.Node.Name(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	t.spans.Store(spanKey{runID: c.Run.ID(), nodeID: c.Node.ID()}, span)
	return nil
}

// After does nothing.
func (t *Tracing) After(*flow.AfterContext) error { return nil }

// Finally records the outcome on the span and ends it.
func (t *Tracing) Finally(c *flow.FinallyContext) error {
	v, ok := t.spans.LoadAndDelete(spanKey{runID: c.Run.ID(), nodeID: c.Node.ID()})
	if !ok {
		return nil
	}
	span := v.(trace.Span)
	if c.Err != nil {
		span.RecordError(c.Err)
		span.SetStatus(codes.Error, c.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	return nil
}
