package ioref

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// contextProvider resolves context://path references against a single
// configured context root directory (§4.A). context:// also doubles as the
// Function implementation locator kind for host-provided functions
// (model.ImplContext); this provider is only consulted when a context
// reference is used as a definition-document source, not as an
// implementation locator (that path is handled by pkg/contextfn).
type contextProvider struct {
	root string
}

func (*contextProvider) Accepts(ref string) bool { return hasScheme(ref, "context://") }

func (p *contextProvider) Resolve(_ context.Context, ref string) (Resolved, error) {
	if p.root == "" {
		return Resolved{}, fmt.Errorf("%w: %s: no context root configured", ErrNotFound, ref)
	}
	rest := strings.TrimPrefix(ref, "context://")
	path := filepath.Join(p.root, rest)
	if data, err := tryReadFile(path); err == nil {
		return Resolved{Bytes: data, Canonical: "context://" + rest}, nil
	}
	// The bare ref rarely names a file directly (rest is usually an
	// extensionless logical name like "stdout"); the matched candidate's
	// extension must survive into Canonical so the parser's
	// extension-based format selection still works downstream.
	for _, candidate := range extensionCandidates(path) {
		if data, err := tryReadFile(candidate); err == nil {
			ext := strings.TrimPrefix(candidate, path)
			return Resolved{Bytes: data, Canonical: "context://" + rest + ext}, nil
		}
	}
	return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}
