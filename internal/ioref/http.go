package ioref

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// httpProvider resolves http:// and https:// references. Matches the
// teacher's own use of net/http directly (no HTTP client dependency
// anywhere in the pack is exercised elsewhere, so we stay on the standard
// library here — see DESIGN.md).
type httpProvider struct {
	cache *Cache
}

func (*httpProvider) Accepts(ref string) bool {
	return hasScheme(ref, "http://") || hasScheme(ref, "https://")
}

func (p *httpProvider) Resolve(ctx context.Context, ref string) (Resolved, error) {
	if data, ok := p.cache.Get(ref); ok {
		return Resolved{Bytes: data, Canonical: ref}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return Resolved{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %s: %v", ErrNotFound, ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Resolved{}, fmt.Errorf("%w: %s: status %d", ErrNotFound, ref, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Resolved{}, err
	}
	_ = p.cache.Put(ref, data)
	return Resolved{Bytes: data, Canonical: ref}, nil
}
