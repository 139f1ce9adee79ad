// Package flowconfig captures process-wide configuration as an immutable
// value passed into loader and runtime constructors, per Design Notes §9:
// "do not read process-wide state at operation time." Grounded on the
// teacher's FlowConfig struct convention (pkg/calque/flow.go) and its
// godotenv-based environment loading.
package flowconfig

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LibPathEnvVar is the colon/comma-separated library search path variable
// referenced in spec.md §6.
const LibPathEnvVar = "FLOW_LIB_PATH"

// Compiler bundles everything internal/load and internal/ioref need about
// where to find library references and context root definitions.
type Compiler struct {
	LibPath     []string // ordered search path; earlier entries win
	ContextRoot string
}

// Runner bundles the runtime's admission-control and execution knobs
// (§4.J): max parallel jobs, in-process executor thread count (0 disables
// in-process execution), and the ready-selection strategy.
type Runner struct {
	MaxParallelJobs int
	ExecutorThreads int
	ReadySelection  string // "in-order" | "random"
	FailFast        bool
}

// DefaultRunner returns sane defaults: one job in flight at a time, selected
// in declared order, in-process execution with one worker, non-fail-fast.
func DefaultRunner() Runner {
	return Runner{
		MaxParallelJobs: 1,
		ExecutorThreads: 1,
		ReadySelection:  "in-order",
		FailFast:        false,
	}
}

// LoadDotEnv loads a .env file (if present) into the process environment,
// matching the teacher's convention of optional godotenv-seeded config. A
// missing file is not an error; any other read failure is returned.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LibPathFromEnv parses FLOW_LIB_PATH (colon- or comma-separated) into an
// ordered search path.
func LibPathFromEnv() []string {
	raw := os.Getenv(LibPathEnvVar)
	if raw == "" {
		return nil
	}
	sep := ":"
	if strings.Contains(raw, ",") {
		sep = ","
	}
	var out []string
	for _, p := range strings.Split(raw, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
