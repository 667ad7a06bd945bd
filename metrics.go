package faultline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments the proxy pipeline records on.
// One Metrics value may be shared by any number of proxies; the method
// label keeps series apart.
type Metrics struct {
	intercepted   *prometheus.CounterVec
	fired         *prometheus.CounterVec
	injectedDelay *prometheus.HistogramVec
}

// MetricsConfig configures metric naming and bucket layout.
type MetricsConfig struct {
	// Namespace is the metric namespace, defaults to "faultline".
	Namespace string

	// Subsystem is the metric subsystem, defaults to "proxy".
	Subsystem string

	// DelayBuckets are the histogram buckets for injected delay, in
	// seconds. Defaults cover the 1ms–30s range typical for configured
	// latency faults.
	DelayBuckets []float64
}

// NewMetrics creates the instrument set and registers it with reg.
// If reg is nil the default Prometheus registerer is used.
func NewMetrics(cfg MetricsConfig, reg prometheus.Registerer) (*Metrics, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "faultline"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "proxy"
	}
	if len(cfg.DelayBuckets) == 0 {
		cfg.DelayBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 10, 30}
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		intercepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "calls_intercepted_total",
			Help:      "Calls that passed through the interception pipeline, by method.",
		}, []string{"method"}),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "faults_fired_total",
			Help:      "Fault effects applied, by method and effect kind.",
		}, []string{"method", "effect"}),
		injectedDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "injected_delay_seconds",
			Help:      "Total latency injected per delayed call, by method.",
			Buckets:   cfg.DelayBuckets,
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{m.intercepted, m.fired, m.injectedDelay} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
