package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/obs"
	"github.com/flowlang/flow/internal/runtime/table"
)

// funcImpl lets each test wire an arbitrary Run closure per function.
type funcImpl struct {
	run func(inputs []any) (any, bool, error)
}

func (f funcImpl) Run(_ context.Context, inputs []any) (any, bool, error) {
	return f.run(inputs)
}

type mapProvider map[string]table.Implementation

func (p mapProvider) Resolve(loc manifest.ImplLocator) (table.Implementation, error) {
	return p[loc.Kind+"://"+loc.URL], nil
}

func runWithTimeout(t *testing.T, c *Coordinator) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Run(ctx)
}

func TestRunSimplePipelineReachesQuiescence(t *testing.T) {
	var mu sync.Mutex
	var received []any

	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{
			ID: 0, Name: "source", Impure: true,
			Impl:    manifest.ImplLocator{Kind: "context", URL: "source"},
			Outputs: []manifest.OutputConnection{{DestFunctionID: 1, DestInputName: "default", Conversion: "identity"}},
		},
		{
			ID: 1, Name: "sink", Impure: true,
			Inputs: []manifest.PortSpec{{Name: "default"}},
			Impl:   manifest.ImplLocator{Kind: "context", URL: "sink"},
		},
	}}

	provider := mapProvider{
		"context://source": funcImpl{run: func([]any) (any, bool, error) { return "hello", false, nil }},
		"context://sink": funcImpl{run: func(inputs []any) (any, bool, error) {
			mu.Lock()
			received = append(received, inputs[0])
			mu.Unlock()
			return nil, false, nil
		}},
	}

	tbl, err := table.Build(m, provider)
	if err != nil {
		t.Fatalf("table.Build() error = %v", err)
	}
	coord := NewCoordinator(tbl, m, Config{MaxParallelJobs: 2, ExecutorThreads: 2})
	coord.Seed(m)

	if err := runWithTimeout(t, coord); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != "hello" {
		t.Fatalf("sink received = %+v, want [hello]", received)
	}
}

func TestRunSelfLoopWithAlwaysInitializerBounded(t *testing.T) {
	var mu sync.Mutex
	var printed []any

	// add(i1, i2) -> print:default, add:i2 (identity): i1 is held at a
	// constant via an Always initializer re-applied after every
	// completed job, and the sum feeds back into i2 for the next round.
	// add reports runAgain=false once it has produced enough terms, so
	// the dispatch loop actually reaches quiescence.
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{
			ID: 0, Name: "add",
			Inputs: []manifest.PortSpec{{Name: "i1"}, {Name: "i2"}},
			Impl:   manifest.ImplLocator{Kind: "library", URL: "math/add"},
			Outputs: []manifest.OutputConnection{
				{DestFunctionID: 1, DestInputName: "default", Conversion: "identity"},
				{DestFunctionID: 0, DestInputName: "i2", Conversion: "identity"},
			},
			Init: []manifest.InitializerSpec{
				{Input: "i1", Kind: "always", Value: 1.0},
				{Input: "i2", Kind: "once", Value: 1.0},
			},
		},
		{
			ID: 1, Name: "print", Impure: true,
			Inputs: []manifest.PortSpec{{Name: "default"}},
			Impl:   manifest.ImplLocator{Kind: "context", URL: "stdout"},
		},
	}}

	const terms = 5
	provider := mapProvider{
		"library://math/add": funcImpl{run: func(inputs []any) (any, bool, error) {
			sum := inputs[0].(float64) + inputs[1].(float64)
			return sum, sum < float64(terms+1), nil
		}},
		"context://stdout": funcImpl{run: func(inputs []any) (any, bool, error) {
			mu.Lock()
			printed = append(printed, inputs[0])
			mu.Unlock()
			// A sink keeps running as long as values keep arriving; once
			// add stops producing, its buffer empties and it settles
			// into Waiting rather than contributing further jobs.
			return nil, true, nil
		}},
	}

	tbl, err := table.Build(m, provider)
	if err != nil {
		t.Fatalf("table.Build() error = %v", err)
	}
	coord := NewCoordinator(tbl, m, Config{MaxParallelJobs: 1, ExecutorThreads: 1})
	coord.Seed(m)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := coord.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(printed) != terms {
		t.Fatalf("printed %d terms, want exactly %d: %+v", len(printed), terms, printed)
	}
	for i, v := range printed {
		want := float64(i + 2)
		if v != want {
			t.Fatalf("printed[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestRunTerminatesWithNoReadyFunctions(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Name: "idle", Inputs: []manifest.PortSpec{{Name: "default"}}, Impl: manifest.ImplLocator{Kind: "context", URL: "never"}},
	}}
	provider := mapProvider{
		"context://never": funcImpl{run: func([]any) (any, bool, error) { return nil, false, nil }},
	}
	tbl, err := table.Build(m, provider)
	if err != nil {
		t.Fatalf("table.Build() error = %v", err)
	}
	coord := NewCoordinator(tbl, m, Config{MaxParallelJobs: 1, ExecutorThreads: 1})
	coord.Seed(m)

	if err := runWithTimeout(t, coord); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunReportsMetricsAndSpanPerJob(t *testing.T) {
	m := &manifest.Manifest{Functions: []manifest.RuntimeFunction{
		{ID: 0, Name: "source", Impure: true, Impl: manifest.ImplLocator{Kind: "context", URL: "source"}},
	}}
	provider := mapProvider{
		"context://source": funcImpl{run: func([]any) (any, bool, error) { return nil, false, nil }},
	}
	tbl, err := table.Build(m, provider)
	if err != nil {
		t.Fatalf("table.Build() error = %v", err)
	}

	metrics := obs.NewInMemoryMetricsProvider()
	tracer := obs.NewInMemoryTracerProvider()
	coord := NewCoordinator(tbl, m, Config{MaxParallelJobs: 1, ExecutorThreads: 1},
		WithMetrics(metrics), WithTracer(tracer))
	coord.Seed(m)

	if err := runWithTimeout(t, coord); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	labels := map[string]string{"function": "source"}
	if got := metrics.GetCounter("flow_jobs_dispatched_total", labels); got != 1 {
		t.Errorf("jobs_dispatched_total = %d, want 1", got)
	}
	if got := metrics.GetGauge("flow_jobs_live", labels); got != 0 {
		t.Errorf("jobs_live gauge = %v, want 0 after completion", got)
	}
	if len(metrics.GetHistogram("flow_job_duration_seconds", labels)) != 1 {
		t.Error("expected one job_duration_seconds observation")
	}

	spans := tracer.GetSpans()
	if len(spans) != 1 || spans[0].Name != "job" {
		t.Fatalf("spans = %+v, want one span named job", spans)
	}
	if spans[0].Attributes["function"] != "source" {
		t.Errorf("span attributes = %+v", spans[0].Attributes)
	}
}
