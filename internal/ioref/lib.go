package ioref

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// libProvider resolves lib://libname/path references by consulting an
// ordered library search path (§4.A): "each entry is a directory or base
// URL; the first entry whose sub-path contains the named library wins."
type libProvider struct {
	searchPath []string
	cache      *Cache
}

func (*libProvider) Accepts(ref string) bool { return hasScheme(ref, "lib://") }

func (p *libProvider) Resolve(ctx context.Context, ref string) (Resolved, error) {
	rest := strings.TrimPrefix(ref, "lib://")
	for _, root := range p.searchPath {
		if strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://") {
			url := strings.TrimSuffix(root, "/") + "/" + rest
			if data, ok := p.cache.Get(url); ok {
				return Resolved{Bytes: data, Canonical: url}, nil
			}
			if resolved, err := (&httpProvider{cache: p.cache}).Resolve(ctx, url); err == nil {
				return resolved, nil
			}
			continue
		}
		path := filepath.Join(root, rest)
		if data, err := tryReadFile(path); err == nil {
			return Resolved{Bytes: data, Canonical: "file://" + path}, nil
		}
		for _, candidate := range extensionCandidates(path) {
			if data, err := tryReadFile(candidate); err == nil {
				return Resolved{Bytes: data, Canonical: "file://" + candidate}, nil
			}
		}
	}
	return Resolved{}, fmt.Errorf("%w: %s not found on library search path", ErrNotFound, ref)
}
