package obs

import (
	"context"
	"sync"
	"time"
)

// NoopMetricsProvider discards every metric, used when observability is
// configured off.
type NoopMetricsProvider struct{}

func (NoopMetricsProvider) Counter(context.Context, string, int64, map[string]string)                {}
func (NoopMetricsProvider) Gauge(context.Context, string, float64, map[string]string)                {}
func (NoopMetricsProvider) Histogram(context.Context, string, float64, map[string]string)             {}
func (NoopMetricsProvider) RecordDuration(context.Context, string, time.Duration, map[string]string) {}

// NoopTracerProvider starts spans that record nothing.
type NoopTracerProvider struct{}

func (NoopTracerProvider) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (NoopTracerProvider) Shutdown(context.Context) error { return nil }

type noopSpan struct{}

func (noopSpan) End(error)                {}
func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) SpanContext() SpanContext { return SpanContext{} }

// InMemoryMetricsProvider records metrics in memory instead of exporting
// them, for tests that need to assert the dispatcher observed the right
// counters without standing up a Prometheus registry.
type InMemoryMetricsProvider struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

func NewInMemoryMetricsProvider() *InMemoryMetricsProvider {
	return &InMemoryMetricsProvider{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (p *InMemoryMetricsProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[metricsKey(name, labels)] += value
}

func (p *InMemoryMetricsProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges[metricsKey(name, labels)] += value
}

func (p *InMemoryMetricsProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := metricsKey(name, labels)
	p.histograms[key] = append(p.histograms[key], value)
}

func (p *InMemoryMetricsProvider) RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string) {
	p.Histogram(ctx, name, duration.Seconds(), labels)
}

func (p *InMemoryMetricsProvider) GetCounter(name string, labels map[string]string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters[metricsKey(name, labels)]
}

func (p *InMemoryMetricsProvider) GetGauge(name string, labels map[string]string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gauges[metricsKey(name, labels)]
}

func (p *InMemoryMetricsProvider) GetHistogram(name string, labels map[string]string) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	values := make([]float64, len(p.histograms[metricsKey(name, labels)]))
	copy(values, p.histograms[metricsKey(name, labels)])
	return values
}

func metricsKey(name string, labels map[string]string) string {
	key := name
	for k, v := range labels {
		key += "|" + k + "=" + v
	}
	return key
}

// InMemoryTracerProvider records spans in memory instead of exporting
// them, for tests that need to assert the dispatcher opened one span
// per job.
type InMemoryTracerProvider struct {
	mu    sync.RWMutex
	spans []*RecordedSpan
}

// RecordedSpan is one span recorded by InMemoryTracerProvider.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	Error      error
	TraceID    string
	SpanID     string
}

func NewInMemoryTracerProvider() *InMemoryTracerProvider {
	return &InMemoryTracerProvider{}
}

func (p *InMemoryTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := &spanConfig{attributes: make(map[string]any)}
	for _, opt := range opts {
		opt(cfg)
	}
	span := &RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]any, len(cfg.attributes)),
		TraceID:    generateID(),
		SpanID:     generateID(),
	}
	for k, v := range cfg.attributes {
		span.Attributes[k] = v
	}
	return ctx, &inMemorySpan{provider: p, span: span}
}

func (p *InMemoryTracerProvider) Shutdown(context.Context) error { return nil }

// GetSpans returns every span ended so far; a span is recorded when its
// End is called.
func (p *InMemoryTracerProvider) GetSpans() []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	spans := make([]*RecordedSpan, len(p.spans))
	copy(spans, p.spans)
	return spans
}

func (p *InMemoryTracerProvider) recordSpan(span *RecordedSpan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans = append(p.spans, span)
}

type inMemorySpan struct {
	provider *InMemoryTracerProvider
	span     *RecordedSpan
}

func (s *inMemorySpan) End(err error) {
	s.span.EndTime = time.Now()
	s.span.Error = err
	s.provider.recordSpan(s.span)
}

func (s *inMemorySpan) SetAttribute(key string, value any) {
	s.span.Attributes[key] = value
}

func (s *inMemorySpan) SpanContext() SpanContext {
	return SpanContext{TraceID: s.span.TraceID, SpanID: s.span.SpanID}
}

func generateID() string {
	return time.Now().Format("20060102150405.000000000")
}
