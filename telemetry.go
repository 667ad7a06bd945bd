package faultline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/faultlineio/faultline"

// observer fans pipeline events out to the configured logger, metrics
// collector, and tracer. The zero value is a no-op on every path.
type observer struct {
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func newObserver(opts ...Option) observer {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt.applyOption(&o)
		}
	}
	return observer{logger: o.logger, metrics: o.metrics, tracer: o.tracer}
}

// begin opens a span for an intercepted call and counts it. The returned
// finish func closes the span with the call's outcome; err here may be an
// injected fault, a wrapped failure, or a mapper failure — the span
// records it, the pipeline still returns it untouched.
func (o observer) begin(ctx context.Context, proxyID string, m Method, count uint64) (context.Context, func(err error)) {
	if o.metrics != nil {
		o.metrics.intercepted.WithLabelValues(m.Name).Inc()
	}

	if o.tracer == nil {
		return ctx, func(error) {}
	}

	ctx, span := o.tracer.Start(ctx, "faultline."+m.Name,
		trace.WithAttributes(
			attribute.String("faultline.proxy_id", proxyID),
			attribute.String("faultline.method", m.String()),
			attribute.Int64("faultline.call_count", int64(count)),
		))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// fired records that a policy's trigger matched and its effect applied.
func (o observer) fired(ctx context.Context, proxyID string, m Method, count uint64, p *Policy) {
	if o.metrics != nil {
		o.metrics.fired.WithLabelValues(m.Name, p.effect.Kind()).Inc()
	}
	if o.logger != nil {
		o.logger.LogAttrs(ctx, slog.LevelDebug, "fault fired",
			slog.String("proxy_id", proxyID),
			slog.String("method", m.String()),
			slog.Uint64("count", count),
			slog.String("trigger", p.trigger.String()),
			slog.String("effect", p.effect.String()),
		)
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("fault fired", trace.WithAttributes(
			attribute.String("faultline.effect", p.effect.Kind()),
			attribute.String("faultline.trigger", p.trigger.String()),
		))
	}
}

// delayed records the total injected latency for one call.
func (o observer) delayed(m Method, d time.Duration) {
	if o.metrics != nil {
		o.metrics.injectedDelay.WithLabelValues(m.Name).Observe(d.Seconds())
	}
}
