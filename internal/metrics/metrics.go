// Package metrics exposes simulator counters as Prometheus collectors.
//
// Collectors live on a private registry so several simulator instances (one
// per test, one per CLI run) never collide on the global default registerer.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "neurowombat"

const (
	OutcomeFailed   = "failed"
	OutcomeSurvived = "survived"
)

var ErrInvalidConfig = errors.New("invalid metrics config")

// Config selects where collectors are registered.
type Config struct {
	Namespace string
	// Registry defaults to a fresh private registry when nil.
	Registry *prometheus.Registry
	// FailureBuckets are the histogram buckets for simulated failure times.
	FailureBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		Namespace:      Namespace,
		FailureBuckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}
}

func (c Config) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	return nil
}

// Metrics holds every collector the simulator updates.
type Metrics struct {
	registry *prometheus.Registry

	steps       prometheus.Counter
	trials      *prometheus.CounterVec
	failureTime prometheus.Histogram
	objects     prometheus.Gauge
	created     *prometheus.CounterVec
}

// New registers the simulator collectors.
func New(cfg Config) (*Metrics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	buckets := cfg.FailureBuckets
	if buckets == nil {
		buckets = DefaultConfig().FailureBuckets
	}

	m := &Metrics{
		registry: reg,
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "engine",
			Name:      "steps_total",
			Help:      "Interrupt events executed by simulation engines.",
		}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "experiment",
			Name:      "trials_total",
			Help:      "Completed reliability trials by outcome.",
		}, []string{"outcome"}),
		failureTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "experiment",
			Name:      "failure_time",
			Help:      "Simulated time of the first incorrect network output.",
			Buckets:   buckets,
		}),
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "registry",
			Name:      "objects",
			Help:      "Registry objects not yet destroyed.",
		}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "registry",
			Name:      "created_total",
			Help:      "Objects inserted into registries by kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{m.steps, m.trials, m.failureTime, m.objects, m.created} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Must is New with the default config; it panics on registration failure.
func Must() *Metrics {
	m, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return m
}

// Step counts one executed engine event.
func (m *Metrics) Step() {
	if m == nil {
		return
	}
	m.steps.Inc()
}

// Trial records a finished trial. failureTime is observed for failed trials only.
func (m *Metrics) Trial(failed bool, failureTime float64) {
	if m == nil {
		return
	}
	if failed {
		m.trials.WithLabelValues(OutcomeFailed).Inc()
		m.failureTime.Observe(failureTime)
		return
	}
	m.trials.WithLabelValues(OutcomeSurvived).Inc()
}

// Created counts one object of kind entering a registry.
func (m *Metrics) Created(kind string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(kind).Inc()
	m.objects.Inc()
}

// Destroyed counts one object leaving a registry.
func (m *Metrics) Destroyed() {
	if m == nil {
		return
	}
	m.objects.Dec()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
