package faultline

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option configures observability for a Proxy or Registry. Options never
// change call semantics: a fully instrumented proxy and a bare one return
// byte-identical results and errors.
type Option interface {
	applyOption(*options)
}

type options struct {
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type optionFunc func(*options)

func (f optionFunc) applyOption(o *options) { f(o) }

// WithLogger logs fired faults and injected delays through l at debug
// level.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

// WithMetrics records intercepted calls, fired faults, and injected delay
// on m.
func WithMetrics(m *Metrics) Option {
	return optionFunc(func(o *options) { o.metrics = m })
}

// WithTracerProvider emits a span per intercepted call that has bound
// policies, annotated with the method and any fired effects.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return optionFunc(func(o *options) {
		o.tracer = tp.Tracer(tracerName)
	})
}
