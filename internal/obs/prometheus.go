package obs

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusProvider implements MetricsProvider on the Prometheus client
// library, lazily registering one CounterVec/GaugeVec/HistogramVec per
// metric name the first time it's observed (metric label sets are not
// known ahead of the dispatcher's first job).
type PrometheusProvider struct {
	mu         sync.RWMutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec

	durationBuckets []float64
}

// PrometheusOption configures a PrometheusProvider.
type PrometheusOption func(*PrometheusProvider)

// WithDurationBuckets overrides the default histogram buckets.
func WithDurationBuckets(buckets []float64) PrometheusOption {
	return func(p *PrometheusProvider) { p.durationBuckets = buckets }
}

// WithPrometheusRegistry registers metrics against an existing registry
// instead of a fresh one.
func WithPrometheusRegistry(registry *prometheus.Registry) PrometheusOption {
	return func(p *PrometheusProvider) { p.registry = registry }
}

// NewPrometheusProvider builds a PrometheusProvider with the Go runtime
// collectors registered alongside the dispatcher's own metrics.
func NewPrometheusProvider(opts ...PrometheusOption) *PrometheusProvider {
	p := &PrometheusProvider{
		registry:        prometheus.NewRegistry(),
		counters:        make(map[string]*prometheus.CounterVec),
		gauges:          make(map[string]*prometheus.GaugeVec),
		histograms:      make(map[string]*prometheus.HistogramVec),
		durationBuckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.registry.MustRegister(collectors.NewGoCollector())
	p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return p
}

func (p *PrometheusProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	p.getOrCreateCounter(name, labels).With(labels).Add(float64(value))
}

func (p *PrometheusProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	p.getOrCreateGauge(name, labels).With(labels).Add(value)
}

func (p *PrometheusProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	p.getOrCreateHistogram(name, labels).With(labels).Observe(value)
}

func (p *PrometheusProvider) RecordDuration(_ context.Context, name string, duration time.Duration, labels map[string]string) {
	p.getOrCreateHistogram(name, labels).With(labels).Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving this provider's metrics for
// Prometheus to scrape.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusProvider) getOrCreateCounter(name string, labels map[string]string) *prometheus.CounterVec {
	p.mu.RLock()
	c, ok := p.counters[name]
	p.mu.RUnlock()
	if ok {
		return c
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.counters[name]; ok {
		return c
	}
	c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: "Counter for " + name}, labelNames(labels))
	p.registry.MustRegister(c)
	p.counters[name] = c
	return c
}

func (p *PrometheusProvider) getOrCreateGauge(name string, labels map[string]string) *prometheus.GaugeVec {
	p.mu.RLock()
	g, ok := p.gauges[name]
	p.mu.RUnlock()
	if ok {
		return g
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok = p.gauges[name]; ok {
		return g
	}
	g = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: "Gauge for " + name}, labelNames(labels))
	p.registry.MustRegister(g)
	p.gauges[name] = g
	return g
}

func (p *PrometheusProvider) getOrCreateHistogram(name string, labels map[string]string) *prometheus.HistogramVec {
	p.mu.RLock()
	h, ok := p.histograms[name]
	p.mu.RUnlock()
	if ok {
		return h
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok = p.histograms[name]; ok {
		return h
	}
	h = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: name, Help: "Histogram for " + name, Buckets: p.durationBuckets,
	}, labelNames(labels))
	p.registry.MustRegister(h)
	p.histograms[name] = h
	return h
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}
