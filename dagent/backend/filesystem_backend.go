package backend

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/pathutil"
)

// FilesystemBackend stores files on the real disk, rooted at Root. Every
// absolute path presented to it (e.g. "/a/b.txt") is treated as relative
// to Root after the leading "/" (§4.A), resolved through pathutil.SafeJoin
// so no operation can escape Root via ".." or a symlink.
type FilesystemBackend struct {
	root    string
	sandbox Sandbox
}

// Sandbox executes shell commands on behalf of the optional execute
// capability. A FilesystemBackend always implements Executor; constructed
// without a Sandbox, its Execute fails with CapabilityUnavailable (§4.A).
type Sandbox interface {
	Run(ctx context.Context, command, cwd string, timeout time.Duration) (ExecResult, error)
}

// NewFilesystemBackend roots a backend at root. sandbox may be nil.
func NewFilesystemBackend(root string, sandbox Sandbox) *FilesystemBackend {
	return &FilesystemBackend{root: filepath.Clean(root), sandbox: sandbox}
}

func (b *FilesystemBackend) resolve(p string) (string, error) {
	p, err := normalizePath(p)
	if err != nil {
		// A disk-backed root has no meaningful "traversal within a virtual
		// namespace" distinct from "outside root" (unlike StateBackend/
		// StoreBackend, which have no real directory to escape): climbing
		// above "/" here means escaping Root itself, so report it as such
		// (§7 PathError.PathOutsideRoot, scenario S3).
		if dagerr.Is(err, dagerr.KindPath, dagerr.CodeTraversal) {
			return "", dagerr.New(dagerr.KindPath, dagerr.CodeOutsideRoot, "path escapes root: %q", p)
		}
		return "", err
	}
	full, err := pathutil.SafeJoin(b.root, strings.TrimPrefix(p, "/"))
	if err != nil {
		return "", dagerr.Wrap(dagerr.KindPath, dagerr.CodeOutsideRoot, err)
	}
	real, err := filepath.EvalSymlinks(full)
	if err == nil {
		if !strings.HasPrefix(real, b.root+string(filepath.Separator)) && real != b.root {
			return "", dagerr.New(dagerr.KindPath, dagerr.CodeOutsideRoot, "symlink escapes root: %s", p)
		}
		return real, nil
	}
	// Target does not exist yet (e.g. a write target): the pre-symlink
	// path already passed SafeJoin, which is sufficient.
	return full, nil
}

func (b *FilesystemBackend) LsInfo(ctx context.Context, dir string) ([]Entry, error) {
	full, err := b.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, classifyOSError(err, dir)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		info, ierr := e.Info()
		var size int64
		var mtime time.Time
		if ierr == nil {
			size = info.Size()
			mtime = info.ModTime()
		}
		out = append(out, Entry{Name: e.Name(), IsDir: e.IsDir(), Size: size, MTime: mtime})
	}
	return out, nil
}

func (b *FilesystemBackend) Read(ctx context.Context, p string, offset, limit int) ([]byte, error) {
	full, err := b.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, classifyOSError(err, p)
	}
	if info.IsDir() {
		return nil, dagerr.New(dagerr.KindPath, dagerr.CodeIsDirectory, "%s is a directory", p)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, classifyOSError(err, p)
	}
	return sliceRange(data, offset, limit), nil
}

func (b *FilesystemBackend) Write(ctx context.Context, p string, data []byte, createParents bool) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if createParents {
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
		}
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return classifyOSError(err, p)
	}
	return nil
}

func (b *FilesystemBackend) Edit(ctx context.Context, p, old, new string, replaceAll bool) (int, error) {
	full, err := b.resolve(p)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return 0, classifyOSError(err, p)
	}
	count := strings.Count(string(data), old)
	replaced, err := pathutil.ApplyEdit(string(data), old, new, replaceAll)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(full, []byte(replaced), 0o644); err != nil {
		return 0, classifyOSError(err, p)
	}
	if !replaceAll {
		return 1, nil
	}
	return count, nil
}

func (b *FilesystemBackend) Glob(ctx context.Context, pattern, root string) ([]string, error) {
	full, err := b.resolve(root)
	if err != nil {
		return nil, err
	}
	var candidates []string
	err = filepath.WalkDir(full, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(b.root, path)
		if rerr != nil {
			return nil
		}
		candidates = append(candidates, "/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, classifyOSError(err, root)
	}
	return pathutil.DoublestarGlob(pattern, candidates)
}

func (b *FilesystemBackend) Grep(ctx context.Context, pattern, root, include string, caseInsensitive bool, maxHits int) ([]Hit, error) {
	full, err := b.resolve(root)
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

	var paths []string
	walkErr := filepath.WalkDir(full, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(b.root, path)
		if rerr != nil {
			return nil
		}
		absRel := "/" + filepath.ToSlash(rel)
		if includeRe != nil && !includeRe.MatchString(absRel) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return nil, classifyOSError(walkErr, root)
	}
	sort.Strings(paths)

	var hits []Hit
	for _, path := range paths {
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			continue
		}
		rel, _ := filepath.Rel(b.root, path)
		absRel := "/" + filepath.ToSlash(rel)
		matches, merr := pathutil.StructuralGrep(string(data), pattern, caseInsensitive)
		if merr != nil {
			return nil, dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments, "invalid pattern: %v", merr)
		}
		for _, m := range matches {
			hits = append(hits, Hit{Path: absRel, LineNo: m.LineNo, Line: m.Line})
			if maxHits > 0 && len(hits) >= maxHits {
				return hits, nil
			}
		}
	}
	return hits, nil
}

func (b *FilesystemBackend) Exists(ctx context.Context, p string) (bool, error) {
	full, err := b.resolve(p)
	if err != nil {
		return false, err
	}
	_, serr := os.Stat(full)
	if serr == nil {
		return true, nil
	}
	if os.IsNotExist(serr) {
		return false, nil
	}
	return false, classifyOSError(serr, p)
}

// Execute implements Executor. It runs the command through the Sandbox, or
// fails with CapabilityUnavailable when no Sandbox is configured.
func (b *FilesystemBackend) Execute(ctx context.Context, command, cwd string, timeout time.Duration) (ExecResult, error) {
	if b.sandbox == nil {
		return ExecResult{}, dagerr.New(dagerr.KindBackend, dagerr.CodeCapabilityUnavailable, "execute not configured for this backend")
	}
	resolvedCwd := b.root
	if cwd != "" {
		full, err := b.resolve(cwd)
		if err != nil {
			return ExecResult{}, err
		}
		resolvedCwd = full
	}
	return b.sandbox.Run(ctx, command, resolvedCwd, timeout)
}

func classifyOSError(err error, p string) error {
	if os.IsNotExist(err) {
		return dagerr.New(dagerr.KindPath, dagerr.CodeNotFound, "no such file or directory: %s", p)
	}
	if os.IsPermission(err) {
		return dagerr.Wrap(dagerr.KindBackend, dagerr.CodePermissionDenied, err)
	}
	return dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
}

var _ Backend = (*FilesystemBackend)(nil)
var _ Executor = (*FilesystemBackend)(nil)

// ShellSandbox is the simplest Sandbox: runs commands with os/exec,
// unconfined beyond the process's own permissions. Callers wanting real
// isolation supply their own Sandbox (a container, a restricted user); the
// shell sandbox provider itself is out of scope (§1).
type ShellSandbox struct{}

func (ShellSandbox) Run(ctx context.Context, command, cwd string, timeout time.Duration) (ExecResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = cwd
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return ExecResult{}, dagerr.Wrap(dagerr.KindTool, dagerr.CodeTimeout, err)
		}
	}
	return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}
