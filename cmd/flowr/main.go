// Command flowr is the flow runtime's thin CLI front-end (spec.md §6,
// "CLI surface of the runner"): it wires internal/flowconfig, the
// zerolog-backed internal/flowlog, and internal/obs (Prometheus metrics,
// optional OTLP tracing) around internal/runtime/dispatch.Coordinator.
// All runtime logic lives in internal/runtime/* and pkg/contextfn /
// pkg/wasmimpl; this file only parses flags, loads one manifest, and
// drives it to quiescence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/flowlang/flow/internal/flowconfig"
	"github.com/flowlang/flow/internal/flowctx"
	"github.com/flowlang/flow/internal/flowerr"
	"github.com/flowlang/flow/internal/flowlog"
	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/obs"
	"github.com/flowlang/flow/internal/runtime/dispatch"
	"github.com/flowlang/flow/internal/runtime/table"
	"github.com/flowlang/flow/pkg/contextfn"
	"github.com/flowlang/flow/pkg/wasmimpl"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("flowr", flag.ContinueOnError)
	maxParallel := fs.Int("max-parallel", flowconfig.DefaultRunner().MaxParallelJobs, "maximum number of jobs in flight at once")
	executorThreads := fs.Int("executor-threads", flowconfig.DefaultRunner().ExecutorThreads, "in-process worker goroutines (0: external executor, not supported, falls back to 1)")
	readySelection := fs.String("ready-selection", flowconfig.DefaultRunner().ReadySelection, "\"in-order\" or \"random\"")
	verbose := fs.Bool("v", false, "enable debug-level logging")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics at this address for the life of the run")
	otlpEndpoint := fs.String("otlp-endpoint", "", "if set, export spans via OTLP/HTTP to this collector endpoint")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: flowr [flags] <manifest-path-or-dir> [flow-args...]")
		return 2
	}
	manifestPath := fs.Arg(0)
	flowArgs := fs.Args()[1:]

	if err := flowconfig.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "flowr: loading .env: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(flowlog.NewZerologHandler(os.Stderr, level))
	ctx := flowctx.WithLogger(context.Background(), logger)
	ctx = flowctx.WithTraceID(ctx, flowctx.NewTraceID())
	ctx = flowctx.WithRoute(ctx, manifestPath)

	m, err := loadManifest(manifestPath)
	if err != nil {
		flowerr.Wrap(ctx, err, "loading manifest").Log(ctx)
		return 1
	}

	provider := wasmimpl.NewChainProvider(
		wasmimpl.NewLibraryRegistry(),
		contextfn.NewProvider(contextfn.Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}, flowArgs),
		wasmimpl.NewWASMProvider(nil),
	)
	tbl, err := table.Build(m, provider)
	if err != nil {
		flowerr.Wrap(ctx, err, "building function table").Log(ctx)
		return 1
	}

	var metrics obs.MetricsProvider = obs.NoopMetricsProvider{}
	if *metricsAddr != "" {
		prom := obs.NewPrometheusProvider()
		metrics = prom
		go serveMetrics(*metricsAddr, prom)
	}
	var tracer obs.TracerProvider = obs.NoopTracerProvider{}
	if *otlpEndpoint != "" {
		otlpTracer, err := obs.NewOTLPTracerProvider("flowr", *otlpEndpoint)
		if err != nil {
			flowerr.Wrap(ctx, err, "starting OTLP tracer").Log(ctx)
			return 1
		}
		tracer = otlpTracer
		defer otlpTracer.Shutdown(ctx)
	}

	selection := dispatch.InOrder
	if *readySelection == "random" {
		selection = dispatch.Random
	}
	coord := dispatch.NewCoordinator(tbl, m, dispatch.Config{
		MaxParallelJobs: *maxParallel,
		ExecutorThreads: *executorThreads,
		ReadySelection:  selection,
	}, dispatch.WithMetrics(metrics), dispatch.WithTracer(tracer))
	coord.Seed(m)

	if err := coord.Run(ctx); err != nil {
		flowerr.Wrap(ctx, err, "run failed").Log(ctx)
		return 1
	}
	flowlog.Info(ctx, "run terminated")
	return 0
}

// loadManifest reads path directly if it names a file, or path/manifest.json
// if it names a directory (spec.md §6: "Positional: manifest path (or
// directory)").
func loadManifest(path string) (*manifest.Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		path = filepath.Join(path, "manifest.json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return manifest.Load(data)
}

func serveMetrics(addr string, prom *obs.PrometheusProvider) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	_ = http.ListenAndServe(addr, mux)
}
