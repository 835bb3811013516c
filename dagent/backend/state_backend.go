package backend

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/pathutil"
)

// StateBackend stores files inside AgentState.Files, keeping a run fully
// hermetic and checkpointable (§4.A). It owns the map it is constructed
// with exclusively — the caller must not mutate it concurrently outside
// this backend, mirroring §3's "ownership is exclusive" rule.
type StateBackend struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewStateBackend wraps the given files map (typically AgentState.Files)
// for exclusive ownership by this backend.
func NewStateBackend(files map[string][]byte) *StateBackend {
	if files == nil {
		files = make(map[string][]byte)
	}
	return &StateBackend{files: files}
}

func (b *StateBackend) LsInfo(ctx context.Context, dir string) ([]Entry, error) {
	dir, err := normalizePath(dir)
	if err != nil {
		return nil, err
	}
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := map[string]Entry{}
	for p, data := range b.files {
		if p == dir {
			continue
		}
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, isDir := firstSegment(rest)
		if _, ok := seen[name]; ok {
			continue
		}
		if isDir {
			seen[name] = Entry{Name: name, IsDir: true}
		} else {
			seen[name] = Entry{Name: name, Size: int64(len(data))}
		}
	}

	out := make([]Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func firstSegment(rest string) (name string, isDir bool) {
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i], true
	}
	return rest, false
}

func (b *StateBackend) Read(ctx context.Context, p string, offset, limit int) ([]byte, error) {
	p, err := normalizePath(p)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.files[p]
	if !ok {
		return nil, dagerr.New(dagerr.KindPath, dagerr.CodeNotFound, "no such file: %s", p)
	}
	return sliceRange(data, offset, limit), nil
}

func sliceRange(data []byte, offset, limit int) []byte {
	if offset < 0 {
		offset = 0
	}
	if offset > len(data) {
		offset = len(data)
	}
	end := len(data)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out
}

func (b *StateBackend) Write(ctx context.Context, p string, data []byte, createParents bool) error {
	p, err := normalizePath(p)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.files[p] = cp
	return nil
}

func (b *StateBackend) Edit(ctx context.Context, p, old, new string, replaceAll bool) (int, error) {
	p, err := normalizePath(p)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[p]
	if !ok {
		return 0, dagerr.New(dagerr.KindPath, dagerr.CodeNotFound, "no such file: %s", p)
	}
	count := strings.Count(string(data), old)
	replaced, err := pathutil.ApplyEdit(string(data), old, new, replaceAll)
	if err != nil {
		return 0, err
	}
	b.files[p] = []byte(replaced)
	if !replaceAll {
		return 1, nil
	}
	return count, nil
}

func (b *StateBackend) Glob(ctx context.Context, pattern, root string) ([]string, error) {
	root, err := normalizePath(root)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	candidates := make([]string, 0, len(b.files))
	for p := range b.files {
		if root == "/" || strings.HasPrefix(p, root) {
			candidates = append(candidates, p)
		}
	}
	b.mu.RUnlock()
	return pathutil.DoublestarGlob(pattern, candidates)
}

func (b *StateBackend) Grep(ctx context.Context, pattern, root, include string, caseInsensitive bool, maxHits int) ([]Hit, error) {
	root, err := normalizePath(root)
	if err != nil {
		return nil, err
	}
	var includeRe *regexp.Regexp
	if include != "" {
		includeRe, err = regexp.Compile(include)
		if err != nil {
			return nil, dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments, "invalid include pattern: %v", err)
		}
	}

	b.mu.RLock()
	paths := make([]string, 0, len(b.files))
	for p := range b.files {
		if root != "/" && !strings.HasPrefix(p, root) {
			continue
		}
		if includeRe != nil && !includeRe.MatchString(p) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var hits []Hit
	for _, p := range paths {
		matches, err := pathutil.StructuralGrep(string(b.files[p]), pattern, caseInsensitive)
		if err != nil {
			b.mu.RUnlock()
			return nil, dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments, "invalid pattern: %v", err)
		}
		for _, m := range matches {
			hits = append(hits, Hit{Path: p, LineNo: m.LineNo, Line: m.Line})
			if maxHits > 0 && len(hits) >= maxHits {
				b.mu.RUnlock()
				return hits, nil
			}
		}
	}
	b.mu.RUnlock()
	return hits, nil
}

func (b *StateBackend) Exists(ctx context.Context, p string) (bool, error) {
	p, err := normalizePath(p)
	if err != nil {
		return false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.files[p]
	return ok, nil
}

var _ Backend = (*StateBackend)(nil)
