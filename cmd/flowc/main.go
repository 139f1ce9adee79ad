// Command flowc is the flow compiler's thin CLI front-end (spec.md §6,
// "CLI surface of the compiler"): it wires internal/flowconfig (env +
// .env), internal/flowlog (zerolog-backed structured logging), and
// internal/obs (optional Prometheus metrics) before handing off to
// internal/compile.Run. All compiler logic lives in internal/compile and
// the packages it composes; this file only parses flags and reports the
// result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flowlang/flow/internal/compile"
	"github.com/flowlang/flow/internal/flowconfig"
	"github.com/flowlang/flow/internal/flowctx"
	"github.com/flowlang/flow/internal/flowerr"
	"github.com/flowlang/flow/internal/flowlog"
	"github.com/flowlang/flow/internal/ioref"
	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/obs"
)

// libFlags collects a repeatable -lib flag into an ordered slice.
type libFlags []string

func (f *libFlags) String() string     { return strings.Join(*f, ",") }
func (f *libFlags) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("flowc", flag.ContinueOnError)
	var libs libFlags
	fs.Var(&libs, "lib", "library search path entry (repeatable)")
	contextRoot := fs.String("context-root", "", "root directory for context:// references")
	compileOnly := fs.Bool("compile-only", false, "validate and report warnings without writing a manifest")
	out := fs.String("out", "", "output directory for the compiled manifest (default: stdout)")
	verbose := fs.Bool("v", false, "enable debug-level logging")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics at this address for the duration of the compile")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: flowc [flags] <root-flow-path-or-url>")
		return 2
	}
	rootRef := fs.Arg(0)

	if err := flowconfig.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "flowc: loading .env: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(flowlog.NewZerologHandler(os.Stderr, level))
	ctx := flowctx.WithLogger(context.Background(), logger)
	ctx = flowctx.WithTraceID(ctx, flowctx.NewTraceID())
	ctx = flowctx.WithRoute(ctx, rootRef)

	var metrics obs.MetricsProvider = obs.NoopMetricsProvider{}
	if *metricsAddr != "" {
		prom := obs.NewPrometheusProvider()
		metrics = prom
		go serveMetrics(*metricsAddr, prom)
	}

	libPath := append(flowconfig.LibPathFromEnv(), libs...)
	cache, err := ioref.NewCache(filepath.Join(os.TempDir(), "flowc-cache"))
	if err != nil {
		flowerr.Wrap(ctx, err, "opening library cache").Log(ctx)
		return 1
	}
	defer cache.Close()

	opts := compile.Options{
		Providers: ioref.NewChain(libPath, *contextRoot, cache),
		Version:   "0.1.0",
	}

	started := time.Now()
	result, err := compile.Run(ctx, rootRef, opts)
	metrics.RecordDuration(ctx, "flow_compile_duration_seconds", time.Since(started), nil)
	if err != nil {
		metrics.Counter(ctx, "flow_compile_total", 1, map[string]string{"outcome": "error"})
		flowerr.Wrap(ctx, err, "compile failed").Log(ctx)
		return 1
	}
	metrics.Counter(ctx, "flow_compile_total", 1, map[string]string{"outcome": "ok"})

	for _, w := range result.Warnings {
		flowlog.Warn(ctx, "compile warning", "detail", w.String())
	}

	if *compileOnly {
		flowlog.Info(ctx, "compile-only: manifest not written", "functions", len(result.Manifest.Functions))
		return 0
	}

	data, err := manifest.Marshal(result.Manifest)
	if err != nil {
		flowerr.Wrap(ctx, err, "marshaling manifest").Log(ctx)
		return 1
	}

	if *out == "" {
		os.Stdout.Write(data)
		os.Stdout.Write([]byte("\n"))
		return 0
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		flowerr.Wrap(ctx, err, "creating output directory").Log(ctx)
		return 1
	}
	outPath := filepath.Join(*out, "manifest.json")
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		flowerr.Wrap(ctx, err, "writing manifest").Log(ctx)
		return 1
	}
	flowlog.Info(ctx, "compiled", "out", outPath, "functions", len(result.Manifest.Functions))
	return 0
}

func serveMetrics(addr string, prom *obs.PrometheusProvider) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	_ = http.ListenAndServe(addr, mux)
}
