// Package backend implements the uniform file-operation contract (§4.A)
// over four storage shapes: in-state, real disk, an external key-value
// store, and a prefix-routing composite.
package backend

import (
	"context"
	"time"
)

// Entry is one directory listing row.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
	MTime time.Time
}

// Hit is one grep match.
type Hit struct {
	Path   string
	LineNo int
	Line   string
}

// ExecResult is the outcome of the optional execute capability.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Backend is the uniform contract every storage shape implements (§4.A).
// Every method enforces the §3 path invariants (absolute, normalized, no
// traversal) before touching storage, returning a *dagerr.Error of kind
// KindPath on violation.
type Backend interface {
	LsInfo(ctx context.Context, path string) ([]Entry, error)
	Read(ctx context.Context, path string, offset, limit int) ([]byte, error)
	Write(ctx context.Context, path string, data []byte, createParents bool) error
	Edit(ctx context.Context, path, old, new string, replaceAll bool) (int, error)
	Glob(ctx context.Context, pattern, root string) ([]string, error)
	Grep(ctx context.Context, pattern, root string, include string, caseInsensitive bool, maxHits int) ([]Hit, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Executor is the optional capability a Backend may additionally satisfy;
// its absence means the `execute` tool is not surfaced (§4.A, §4.D.2).
type Executor interface {
	Execute(ctx context.Context, command string, cwd string, timeout time.Duration) (ExecResult, error)
}

// SupportsExecute reports whether b also implements Executor.
func SupportsExecute(b Backend) (Executor, bool) {
	e, ok := b.(Executor)
	return e, ok
}
