package backend

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/package-register/deepagent-go/dagent/dagerr"
)

func executeUnavailable() error {
	return dagerr.New(dagerr.KindBackend, dagerr.CodeCapabilityUnavailable, "execute not available on composite backend")
}

// CompositeBackend routes each path to a child backend by longest-prefix
// match, falling back to Default for unmatched paths (§4.A). It does no
// locking of its own — per §5's shared-resource policy, each child backend
// is responsible for its own write serialization. The composite strips
// nothing from the path: children see the full absolute path.
type CompositeBackend struct {
	Default Backend
	Routes  map[string]Backend

	prefixes []string // Routes' keys, sorted longest-first
}

// NewCompositeBackend builds a composite with the given default and
// prefix routes.
func NewCompositeBackend(def Backend, routes map[string]Backend) *CompositeBackend {
	c := &CompositeBackend{Default: def, Routes: routes}
	for p := range routes {
		c.prefixes = append(c.prefixes, p)
	}
	sort.Slice(c.prefixes, func(i, j int) bool { return len(c.prefixes[i]) > len(c.prefixes[j]) })
	return c
}

// route returns the backend that owns path, by longest matching prefix.
func (c *CompositeBackend) route(path string) Backend {
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(path, prefix) {
			return c.Routes[prefix]
		}
	}
	return c.Default
}

func (c *CompositeBackend) LsInfo(ctx context.Context, path string) ([]Entry, error) {
	return c.route(path).LsInfo(ctx, path)
}

func (c *CompositeBackend) Read(ctx context.Context, path string, offset, limit int) ([]byte, error) {
	return c.route(path).Read(ctx, path, offset, limit)
}

func (c *CompositeBackend) Write(ctx context.Context, path string, data []byte, createParents bool) error {
	return c.route(path).Write(ctx, path, data, createParents)
}

func (c *CompositeBackend) Edit(ctx context.Context, path, old, new string, replaceAll bool) (int, error) {
	return c.route(path).Edit(ctx, path, old, new, replaceAll)
}

// Glob fans out across every distinct backend whose routed prefix
// intersects root (plus Default), merging and re-sorting results — a glob
// rooted above a route boundary must see files owned by more than one
// backend (§4.A: "Cross-backend operations ... fan out and merge").
func (c *CompositeBackend) Glob(ctx context.Context, pattern, root string) ([]string, error) {
	seen := map[Backend]bool{}
	var all []string
	for _, b := range c.participants(root) {
		if seen[b] {
			continue
		}
		seen[b] = true
		matches, err := b.Glob(ctx, pattern, root)
		if err != nil {
			return nil, err
		}
		all = append(all, matches...)
	}
	sort.Strings(all)
	return dedupeStrings(all), nil
}

func (c *CompositeBackend) Grep(ctx context.Context, pattern, root, include string, caseInsensitive bool, maxHits int) ([]Hit, error) {
	seen := map[Backend]bool{}
	var all []Hit
	for _, b := range c.participants(root) {
		if seen[b] {
			continue
		}
		seen[b] = true
		hits, err := b.Grep(ctx, pattern, root, include, caseInsensitive, maxHits)
		if err != nil {
			return nil, err
		}
		all = append(all, hits...)
		if maxHits > 0 && len(all) >= maxHits {
			all = all[:maxHits]
			break
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Path != all[j].Path {
			return all[i].Path < all[j].Path
		}
		return all[i].LineNo < all[j].LineNo
	})
	return all, nil
}

func (c *CompositeBackend) Exists(ctx context.Context, path string) (bool, error) {
	return c.route(path).Exists(ctx, path)
}

// Execute delegates to the routed backend's Executor, if it has one.
func (c *CompositeBackend) Execute(ctx context.Context, command, cwd string, timeout time.Duration) (ExecResult, error) {
	target := c.route(cwd)
	if e, ok := SupportsExecute(target); ok {
		return e.Execute(ctx, command, cwd, timeout)
	}
	if e, ok := SupportsExecute(c.Default); ok {
		return e.Execute(ctx, command, cwd, timeout)
	}
	var zero ExecResult
	return zero, executeUnavailable()
}

// participants returns every backend whose routed namespace could overlap
// root: any route whose prefix starts with root or that root starts with,
// plus Default.
func (c *CompositeBackend) participants(root string) []Backend {
	out := []Backend{c.Default}
	for prefix, b := range c.Routes {
		if strings.HasPrefix(prefix, root) || strings.HasPrefix(root, prefix) {
			out = append(out, b)
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	out := in[:0]
	var last string
	first := true
	for _, s := range in {
		if first || s != last {
			out = append(out, s)
			last = s
			first = false
		}
	}
	return out
}

var _ Backend = (*CompositeBackend)(nil)
