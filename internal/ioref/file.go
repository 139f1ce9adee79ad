package ioref

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileProvider resolves file:// references and bare relative paths,
// trying the extension-probing order from §4.A when the path does not
// directly name a file.
type fileProvider struct{}

func (*fileProvider) Accepts(ref string) bool {
	if hasScheme(ref, "file://") {
		return true
	}
	// A bare relative path (no other known scheme) is file:// per §6.
	for _, scheme := range []string{"http://", "https://", "lib://", "context://"} {
		if hasScheme(ref, scheme) {
			return false
		}
	}
	return true
}

func (*fileProvider) Resolve(_ context.Context, ref string) (Resolved, error) {
	path := strings.TrimPrefix(ref, "file://")
	if data, err := tryReadFile(path); err == nil {
		return Resolved{Bytes: data, Canonical: "file://" + path}, nil
	}
	for _, candidate := range extensionCandidates(path) {
		if data, err := tryReadFile(candidate); err == nil {
			return Resolved{Bytes: data, Canonical: "file://" + candidate}, nil
		}
	}
	return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func tryReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return os.ReadFile(path)
}

// extensionCandidates implements §4.A's resolution order for a path that
// does not directly name a file: the path with each supported extension
// appended, then path/root.<ext>, then path/<basename>.<ext>.
func extensionCandidates(path string) []string {
	base := filepath.Base(path)
	var out []string
	for _, ext := range DefinitionExtensions {
		out = append(out, path+"."+ext)
	}
	for _, ext := range DefinitionExtensions {
		out = append(out, filepath.Join(path, "root."+ext))
	}
	for _, ext := range DefinitionExtensions {
		out = append(out, filepath.Join(path, base+"."+ext))
	}
	return out
}
