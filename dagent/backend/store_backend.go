package backend

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/pathutil"
)

// StoreBackend layers the §4.A Backend contract over an external
// key-value Store, using hierarchical keys "<namespace>/<path>" (§6.4).
// ls_info is simulated by prefix scans; the contract only promises
// read-your-writes through this handle, matching the store's own
// eventual-consistency model.
type StoreBackend struct {
	store     Store
	namespace string
}

// NewStoreBackend roots a backend at namespace within store.
func NewStoreBackend(store Store, namespace string) *StoreBackend {
	return &StoreBackend{store: store, namespace: strings.Trim(namespace, "/")}
}

func (b *StoreBackend) key(p string) (string, error) {
	p, err := normalizePath(p)
	if err != nil {
		return "", err
	}
	return b.namespace + p, nil
}

func (b *StoreBackend) LsInfo(ctx context.Context, dir string) ([]Entry, error) {
	dir, err := normalizePath(dir)
	if err != nil {
		return nil, err
	}
	prefix := b.namespace + dir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	keys, err := b.store.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}

	seen := map[string]bool{}
	var out []Entry
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if rest == "" {
			continue
		}
		name, isDir := firstSegment(rest)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *StoreBackend) Read(ctx context.Context, p string, offset, limit int) ([]byte, error) {
	key, err := b.key(p)
	if err != nil {
		return nil, err
	}
	data, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	if !ok {
		return nil, dagerr.New(dagerr.KindPath, dagerr.CodeNotFound, "no such file: %s", p)
	}
	return sliceRange(data, offset, limit), nil
}

func (b *StoreBackend) Write(ctx context.Context, p string, data []byte, createParents bool) error {
	key, err := b.key(p)
	if err != nil {
		return err
	}
	if err := b.store.Put(ctx, key, data); err != nil {
		return dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	return nil
}

func (b *StoreBackend) Edit(ctx context.Context, p, old, new string, replaceAll bool) (int, error) {
	key, err := b.key(p)
	if err != nil {
		return 0, err
	}
	data, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return 0, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	if !ok {
		return 0, dagerr.New(dagerr.KindPath, dagerr.CodeNotFound, "no such file: %s", p)
	}
	count := strings.Count(string(data), old)
	replaced, err := pathutil.ApplyEdit(string(data), old, new, replaceAll)
	if err != nil {
		return 0, err
	}
	if err := b.store.Put(ctx, key, []byte(replaced)); err != nil {
		return 0, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	if !replaceAll {
		return 1, nil
	}
	return count, nil
}

func (b *StoreBackend) Glob(ctx context.Context, pattern, root string) ([]string, error) {
	root, err := normalizePath(root)
	if err != nil {
		return nil, err
	}
	keys, err := b.store.ListPrefix(ctx, b.namespace+root)
	if err != nil {
		return nil, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	candidates := make([]string, 0, len(keys))
	for _, k := range keys {
		candidates = append(candidates, strings.TrimPrefix(k, b.namespace))
	}
	return pathutil.DoublestarGlob(pattern, candidates)
}

func (b *StoreBackend) Grep(ctx context.Context, pattern, root, include string, caseInsensitive bool, maxHits int) ([]Hit, error) {
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

	keys, err := b.store.ListPrefix(ctx, b.namespace+root)
	if err != nil {
		return nil, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	sort.Strings(keys)

	var hits []Hit
	for _, k := range keys {
		rel := strings.TrimPrefix(k, b.namespace)
		if includeRe != nil && !includeRe.MatchString(rel) {
			continue
		}
		data, ok, gerr := b.store.Get(ctx, k)
		if gerr != nil || !ok {
			continue
		}
		matches, merr := pathutil.StructuralGrep(string(data), pattern, caseInsensitive)
		if merr != nil {
			return nil, dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments, "invalid pattern: %v", merr)
		}
		for _, m := range matches {
			hits = append(hits, Hit{Path: rel, LineNo: m.LineNo, Line: m.Line})
			if maxHits > 0 && len(hits) >= maxHits {
				return hits, nil
			}
		}
	}
	return hits, nil
}

func (b *StoreBackend) Exists(ctx context.Context, p string) (bool, error) {
	key, err := b.key(p)
	if err != nil {
		return false, err
	}
	_, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return false, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	return ok, nil
}

var _ Backend = (*StoreBackend)(nil)
