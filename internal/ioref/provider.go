// Package ioref is the content provider (§4.A): it resolves a location
// reference — local:// (as a bare relative path or file://), remote
// http(s)://, lib://libname/path, or context://path — to bytes and a
// canonical location string.
package ioref

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no resolution strategy can locate a
// reference (spec.md §7: NotFound(location)).
var ErrNotFound = errors.New("content reference not found")

// DefinitionExtensions are tried, in order, when a reference does not
// directly name a file (§4.A resolution order).
var DefinitionExtensions = []string{"flow", "fn", "json", "yaml", "yml"}

// Resolved is the result of resolving a reference: its bytes and the
// canonical location used to report errors and to resolve further
// relative references found within it.
type Resolved struct {
	Bytes     []byte
	Canonical string
}

// Provider resolves a single kind of reference to bytes.
type Provider interface {
	// Accepts reports whether this provider handles ref.
	Accepts(ref string) bool
	// Resolve fetches ref, trying the extension-probing candidates from
	// extensionCandidates when ref does not directly name a file.
	Resolve(ctx context.Context, ref string) (Resolved, error)
}

// Chain composes providers, selecting the first whose Accepts returns true.
type Chain struct {
	providers []Provider
}

// NewChain builds a Chain configured with the standard four resolvers:
// file, http(s), lib, and context. libPath is the ordered library search
// path (seeded from FLOW_LIB_PATH and CLI flags per flowconfig); contextRoot
// is the single context:// root directory. cache, if non-nil, memoizes
// http(s) fetches, including library roots that are base URLs; libraries
// read from local directories are not cached (see Cache).
func NewChain(libPath []string, contextRoot string, cache *Cache) *Chain {
	return &Chain{providers: []Provider{
		&fileProvider{},
		&httpProvider{cache: cache},
		&libProvider{searchPath: libPath, cache: cache},
		&contextProvider{root: contextRoot},
	}}
}

// Resolve dispatches ref to the first accepting provider.
func (c *Chain) Resolve(ctx context.Context, ref string) (Resolved, error) {
	for _, p := range c.providers {
		if p.Accepts(ref) {
			return p.Resolve(ctx, ref)
		}
	}
	return Resolved{}, fmt.Errorf("%w: unknown URL scheme in %q", ErrNotFound, ref)
}

func hasScheme(ref, scheme string) bool {
	return strings.HasPrefix(ref, scheme)
}
