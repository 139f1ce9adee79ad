// Package wasmimpl composes the three kinds of implementation a manifest
// locator can name (spec.md Design Notes §9, "Dynamic dispatch to
// function implementations") behind one table.ImplementationProvider
// chain: a library-native Go closure registry, the context-routed
// provider from pkg/contextfn, and a WASM-loaded-closure provider whose
// loading capability is abstracted behind a small interface rather than
// an actual WASM runtime dependency — the same way the teacher hides a
// remote backend behind pkg/middleware/remote.Client so callers never
// see the concrete transport.
package wasmimpl

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowlang/flow/internal/manifest"
	"github.com/flowlang/flow/internal/runtime/table"
)

// ChainProvider tries each of its providers in order, returning the
// first resolved Implementation. A provider signals "not mine" by
// returning (nil, nil); it signals "mine, but broken" with a non-nil
// error, which ChainProvider propagates immediately without consulting
// the rest of the chain.
type ChainProvider struct {
	providers []table.ImplementationProvider
}

// NewChainProvider builds a ChainProvider trying providers in the given
// order.
func NewChainProvider(providers ...table.ImplementationProvider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// Resolve implements table.ImplementationProvider.
func (c *ChainProvider) Resolve(loc manifest.ImplLocator) (table.Implementation, error) {
	for _, p := range c.providers {
		impl, err := p.Resolve(loc)
		if err != nil {
			return nil, err
		}
		if impl != nil {
			return impl, nil
		}
	}
	return nil, fmt.Errorf("wasmimpl: no provider resolved %s://%s", loc.Kind, loc.URL)
}

// LibraryRegistry is a library-native Go closure registry (spec.md
// "library-native closure" variant): test and builtin functions register
// themselves by the URL a `function`/`source` pair resolves to, and
// Resolve hands back whatever was registered under that exact URL.
type LibraryRegistry struct {
	mu  sync.RWMutex
	fns map[string]table.Implementation
}

// NewLibraryRegistry builds an empty registry.
func NewLibraryRegistry() *LibraryRegistry {
	return &LibraryRegistry{fns: make(map[string]table.Implementation)}
}

// Register binds url (the manifest's `library://<name>/<path>` URL, minus
// the scheme) to impl. A later Register for the same url replaces it.
func (r *LibraryRegistry) Register(url string, impl table.Implementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[url] = impl
}

// Resolve implements table.ImplementationProvider.
func (r *LibraryRegistry) Resolve(loc manifest.ImplLocator) (table.Implementation, error) {
	if loc.Kind != "library" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fns[loc.URL], nil
}

// WASMLoader abstracts loading a WASM module's exported function as a
// table.Implementation. It is never implemented by a real WASM runtime
// in this repository — WASM loading is out of scope (spec.md §1,
// "out-of-core, specified only at their interface") — but the interface
// lets WASMProvider's Resolve contract, and the chain it participates
// in, be exercised without one.
type WASMLoader interface {
	Load(ctx context.Context, path string) (table.Implementation, error)
}

// WASMProvider resolves `source` locators — a bare relative path or
// file://... naming a WASM-compiled function body — via a WASMLoader.
type WASMProvider struct {
	loader WASMLoader
}

// NewWASMProvider builds a WASMProvider delegating to loader. A nil
// loader is valid: Resolve then always reports the capability as
// unimplemented rather than panicking on a nil call.
func NewWASMProvider(loader WASMLoader) *WASMProvider {
	return &WASMProvider{loader: loader}
}

// Resolve implements table.ImplementationProvider.
func (p *WASMProvider) Resolve(loc manifest.ImplLocator) (table.Implementation, error) {
	if loc.Kind != "source" {
		return nil, nil
	}
	if p.loader == nil {
		return nil, fmt.Errorf("wasmimpl: WASM loading not implemented (source %q)", loc.URL)
	}
	return p.loader.Load(context.Background(), loc.URL)
}
