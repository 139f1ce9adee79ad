// Package dispatch is the dispatcher/executor pool (§4.J): a
// single-threaded coordinator loop that repeatedly picks Ready
// functions, forms their jobs, hands them to a bounded pool of worker
// goroutines, and applies routing (§4.K) to each completed job's result
// until the graph reaches quiescence.
package dispatch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/obs"
	"github.com/flowlang/flow/internal/runtime/route"
	"github.com/flowlang/flow/internal/runtime/state"
	"github.com/flowlang/flow/internal/runtime/table"
)

// ReadySelection chooses among the functions currently Ready when more
// than max_parallel_jobs - live_jobs could be started.
type ReadySelection int

const (
	InOrder ReadySelection = iota
	Random
)

// Config is the dispatcher's configuration (spec.md §4.J).
type Config struct {
	MaxParallelJobs int
	ExecutorThreads int
	ReadySelection  ReadySelection
}

// jobResult is what a worker goroutine reports back to the coordinator
// once a dispatched job's implementation returns.
type jobResult struct {
	functionID int
	output     any
	runAgain   bool
	err        error
	span       obs.Span
	started    time.Time
}

// Coordinator runs the dispatch loop over one resolved function table. It
// owns the run-state machine driving that table and is not safe for
// concurrent use — Run itself is the only goroutine that touches table
// or machine state; worker goroutines only execute implementations and
// report results back over a channel.
type Coordinator struct {
	tbl     *table.Table
	machine *state.Machine
	cfg     Config
	sem     *semaphore.Weighted

	flowMembers map[int][]int

	metrics obs.MetricsProvider
	tracer  obs.TracerProvider
}

// Option configures optional observability providers on a Coordinator.
type Option func(*Coordinator)

// WithMetrics attaches a metrics provider; jobs dispatched and live-job
// count are reported against it. Omitted, metrics are discarded.
func WithMetrics(m obs.MetricsProvider) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTracer attaches a tracer provider; one span covers each dispatched
// job from admission to completion. Omitted, tracing is a no-op.
func WithTracer(t obs.TracerProvider) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// NewCoordinator builds a Coordinator for tbl, deriving flow membership
// and cross-flow sender lists from m (the manifest tbl itself was built
// from) so the run-state machine can enforce flow-busy exclusion without
// ever inspecting the graph itself.
func NewCoordinator(tbl *table.Table, m *manifest.Manifest, cfg Config, opts ...Option) *Coordinator {
	if cfg.MaxParallelJobs < 1 {
		cfg.MaxParallelJobs = 1
	}
	executorThreads := cfg.ExecutorThreads
	if executorThreads < 1 {
		// executor_threads == 0 means "no in-process execution, served by
		// an external executor endpoint" (spec.md §4.J), which is out of
		// scope; run everything on a single in-process worker instead of
		// refusing to make progress.
		executorThreads = 1
	}

	flowOf := make(map[int]int, len(m.Functions))
	flowMembers := make(map[int][]int, len(m.Functions))
	for _, rf := range m.Functions {
		flowOf[rf.ID] = rf.FlowID
		flowMembers[rf.FlowID] = append(flowMembers[rf.FlowID], rf.ID)
	}

	crossFlowSenders := make(map[int][]int)
	for _, rf := range m.Functions {
		for _, oc := range rf.Outputs {
			destFlow := flowOf[oc.DestFunctionID]
			if destFlow != rf.FlowID {
				crossFlowSenders[destFlow] = append(crossFlowSenders[destFlow], rf.ID)
			}
		}
	}

	c := &Coordinator{
		tbl:         tbl,
		machine:     state.NewMachine(flowOf, crossFlowSenders),
		cfg:         cfg,
		sem:         semaphore.NewWeighted(int64(executorThreads)),
		flowMembers: flowMembers,
		metrics:     obs.NoopMetricsProvider{},
		tracer:      obs.NoopTracerProvider{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed applies every declared initializer once (Once and Always alike —
// an Always initializer's first application is indistinguishable from a
// Once one until its owning function's first job completes) and then
// starts every function's state from its resulting buffer occupancy, per
// spec.md §4.I's "Initial → (Ready|Waiting) at startup based on
// initializers".
func (c *Coordinator) Seed(m *manifest.Manifest) {
	for _, rf := range m.Functions {
		fn := c.tbl.Functions[rf.ID]
		for _, init := range rf.Init {
			route.ApplyInitializer(c.machine, fn, init.Input, init.Value)
		}
	}
	for _, rf := range m.Functions {
		fn := c.tbl.Functions[rf.ID]
		c.machine.Start(rf.ID, rf.Impure, len(rf.Inputs) > 0, fn.NeedsInput())
	}
}

// Run drives the dispatch loop (§4.J) to quiescence: it dispatches every
// Ready function it can admit under max_parallel_jobs, blocks for the
// next completed job, applies its routing and settles the induced state
// changes synchronously, and repeats until no function is Ready and no
// job is live. It returns ctx's error if ctx is canceled before then.
func (c *Coordinator) Run(ctx context.Context) error {
	results := make(chan jobResult)
	var wg sync.WaitGroup
	liveJobs := 0

	for {
		for liveJobs < c.cfg.MaxParallelJobs {
			id, ok := c.pickReady()
			if !ok {
				break
			}
			if err := c.dispatch(ctx, id, results, &wg); err != nil {
				wg.Wait()
				return err
			}
			liveJobs++
		}

		if liveJobs == 0 {
			wg.Wait()
			return nil
		}

		select {
		case res := <-results:
			liveJobs--
			c.settle(res)
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
	}
}

// pickReady selects one function currently in the Ready state per the
// configured strategy. InOrder always returns the lowest id; Random
// picks uniformly among all Ready candidates.
func (c *Coordinator) pickReady() (int, bool) {
	var ready []int
	for _, fn := range c.tbl.Functions {
		if c.machine.State(fn.ID) == state.Ready {
			ready = append(ready, fn.ID)
		}
	}
	if len(ready) == 0 {
		return 0, false
	}
	if c.cfg.ReadySelection == Random {
		return ready[rand.IntN(len(ready))], true
	}
	return ready[0], true
}

// dispatch forms id's job by draining one value from each input buffer,
// releases any producers blocked on id's now-freed input, transitions id
// to Running, and hands the job to a worker goroutine bounded by the
// executor-thread semaphore.
func (c *Coordinator) dispatch(ctx context.Context, id int, results chan<- jobResult, wg *sync.WaitGroup) error {
	fn := c.tbl.Functions[id]
	inputs := make([]any, len(fn.Inputs))
	for i := range fn.Inputs {
		v, _ := fn.Inputs[i].Pop()
		inputs[i] = v
	}

	c.release(c.machine.OnNewJob(id))

	labels := map[string]string{"function": fn.Name}
	c.metrics.Counter(ctx, "flow_jobs_dispatched_total", 1, labels)
	c.metrics.Gauge(ctx, "flow_jobs_live", 1, labels)
	spanCtx, span := c.tracer.StartSpan(ctx, "job", obs.WithAttributes(map[string]any{
		"function_id": id, "function": fn.Name,
	}))
	started := time.Now()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		var out any
		var runAgain bool
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("function %q panicked: %v", fn.Name, r)
				}
			}()
			out, runAgain, err = fn.Impl.Run(spanCtx, inputs)
		}()
		// Free the executor slot before reporting: the coordinator may be
		// waiting in Acquire and reads results only between admissions.
		c.sem.Release(1)
		result := jobResult{functionID: id, output: out, runAgain: runAgain, err: err, span: span, started: started}
		select {
		case results <- result:
		case <-ctx.Done():
		}
	}()
	return nil
}

// settle applies one completed job's routing and re-applied Always
// initializers, transitions its function via OnJobDone, and settles its
// owning flow — all synchronously, before the coordinator considers the
// next Ready function (spec.md §4.J step 3).
//
// A failed job (a panic recovered in the worker goroutine, or a
// reported error) discards its output and completes the function rather
// than retrying; spec.md's "fail-fast" configuration is not wired here,
// so failures never abort the run.
func (c *Coordinator) settle(res jobResult) {
	fn := c.tbl.Functions[res.functionID]
	labels := map[string]string{"function": fn.Name}

	ctx := context.Background()
	c.metrics.Gauge(ctx, "flow_jobs_live", -1, labels)
	c.metrics.RecordDuration(ctx, "flow_job_duration_seconds", time.Since(res.started), labels)
	res.span.End(res.err)

	if res.err == nil && res.output != nil {
		route.Apply(c.tbl, c.machine, res.functionID, res.output)
	}
	if res.err == nil {
		for _, init := range fn.Init {
			if init.Kind == "always" {
				route.ApplyInitializer(c.machine, fn, init.Input, init.Value)
			}
		}
	}

	runAgain := res.runAgain && res.err == nil
	c.machine.OnJobDone(res.functionID, runAgain, fn.NeedsInput(), c.machine.OutputBlocked(res.functionID))

	c.release(c.machine.SettleFlow(fn.FlowID, c.flowMembers[fn.FlowID]))
}

// release re-evaluates every function id named in ids against an
// UnBlock event, using its current buffer occupancy and block status —
// the common tail of both OnNewJob's producer release and SettleFlow's
// cross-flow sender release.
func (c *Coordinator) release(ids []int) {
	for _, id := range ids {
		fn := c.tbl.Functions[id]
		c.machine.OnUnblock(id, fn.NeedsInput(), c.machine.OutputBlocked(id))
	}
}
