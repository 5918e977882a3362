package mcp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/wagiedev/mcp-depscore-agent/internal/mcp"

// telemetry records a span and request metrics for each MCP operation.
type telemetry struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// newTelemetry builds instruments from the given providers. Nil providers
// fall back to the global otel providers, which are no-ops unless the
// application installs real ones.
func newTelemetry(tracer trace.Tracer, meter metric.Meter) *telemetry {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	t := &telemetry{tracer: tracer}

	// Instrument creation only fails for invalid names; the returned
	// instrument is still usable, so errors are dropped.
	t.requests, _ = meter.Int64Counter("mcpagent.mcp.requests",
		metric.WithDescription("MCP requests issued, by method and outcome"),
		metric.WithUnit("{request}"),
	)
	t.latency, _ = meter.Float64Histogram("mcpagent.mcp.latency",
		metric.WithDescription("MCP request latency"),
		metric.WithUnit("s"),
	)

	return t
}

// operation is one traced MCP call.
type operation struct {
	t      *telemetry
	span   trace.Span
	start  time.Time
	method string
	attrs  []attribute.KeyValue
}

func (t *telemetry) start(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	attrs = append([]attribute.KeyValue{attribute.String("mcp.method", method)}, attrs...)

	ctx, span := t.tracer.Start(ctx, "mcp."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, &operation{t: t, span: span, start: time.Now(), method: method, attrs: attrs}
}

// end finishes the span and records metrics with the outcome of err.
func (op *operation) end(ctx context.Context, err error) {
	outcome := "ok"

	if err != nil {
		outcome = "error"

		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(append(op.attrs, attribute.String("outcome", outcome))...)

	if op.t.requests != nil {
		op.t.requests.Add(ctx, 1, attrs)
	}

	if op.t.latency != nil {
		op.t.latency.Record(ctx, time.Since(op.start).Seconds(), attrs)
	}

	op.span.End()
}
