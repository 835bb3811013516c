package backend_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/package-register/deepagent-go/dagent/backend"
	"github.com/package-register/deepagent-go/dagent/dagerr"
)

func TestStateBackendWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := backend.NewStateBackend(nil)

	if err := b.Write(ctx, "/a/b.txt", []byte("hello world"), true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := b.Read(ctx, "/a/b.txt", 0, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("Read = %q", got)
	}
}

func TestStateBackendRejectsRelativePath(t *testing.T) {
	ctx := context.Background()
	b := backend.NewStateBackend(nil)
	_, err := b.Read(ctx, "relative/path.txt", 0, 0)
	e, ok := dagerr.As(err)
	if !ok || e.Kind != dagerr.KindPath || e.Code != dagerr.CodeNotAbsolute {
		t.Fatalf("expected PathError.NotAbsolute, got %v", err)
	}
}

func TestStateBackendEditUniqueness(t *testing.T) {
	ctx := context.Background()
	b := backend.NewStateBackend(nil)
	if err := b.Write(ctx, "/x.txt", []byte("foo foo"), true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := b.Edit(ctx, "/x.txt", "foo", "bar", false); !dagerr.Is(err, dagerr.KindEdit, dagerr.CodeOldNotUnique) {
		t.Fatalf("expected EditError.OldNotUnique, got %v", err)
	}

	count, err := b.Edit(ctx, "/x.txt", "foo", "bar", true)
	if err != nil {
		t.Fatalf("Edit replaceAll: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	got, _ := b.Read(ctx, "/x.txt", 0, 0)
	if string(got) != "bar bar" {
		t.Fatalf("Read after edit = %q", got)
	}
}

func TestStateBackendGlob(t *testing.T) {
	ctx := context.Background()
	b := backend.NewStateBackend(nil)
	b.Write(ctx, "/src/a.go", []byte("a"), true)
	b.Write(ctx, "/src/pkg/b.go", []byte("b"), true)
	b.Write(ctx, "/src/skip.txt", []byte("c"), true)

	matches, err := b.Glob(ctx, "/src/**/*.go", "/")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %v, want 2", matches)
	}
}

func TestFilesystemBackendPathGuard(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b := backend.NewFilesystemBackend(root, nil)

	if err := os.WriteFile(filepath.Join(root, "in.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	got, err := b.Read(ctx, "/in.txt", 0, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hi" {
		t.Fatalf("Read = %q", got)
	}

	_, err = b.Read(ctx, "/../outside.txt", 0, 0)
	if !dagerr.Is(err, dagerr.KindPath, dagerr.CodeOutsideRoot) {
		t.Fatalf("expected PathError.PathOutsideRoot, got %v", err)
	}

	_, err = b.Read(ctx, "../outside.txt", 0, 0)
	if !dagerr.Is(err, dagerr.KindPath, dagerr.CodeNotAbsolute) {
		t.Fatalf("expected PathError.NotAbsolute, got %v", err)
	}
}

func TestFilesystemBackendExecuteUnavailableWithoutSandbox(t *testing.T) {
	root := t.TempDir()
	b := backend.NewFilesystemBackend(root, nil)
	_, err := b.Execute(context.Background(), "echo hi", "", 0)
	if !dagerr.Is(err, dagerr.KindBackend, dagerr.CodeCapabilityUnavailable) {
		t.Fatalf("expected CapabilityUnavailable, got %v", err)
	}
}

func TestStoreBackendWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := backend.NewMemoryStore()
	b := backend.NewStoreBackend(store, "/memories")

	if err := b.Write(ctx, "/u.txt", []byte("x"), true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := b.Read(ctx, "/u.txt", 0, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "x" {
		t.Fatalf("Read = %q", got)
	}

	raw, ok, _ := store.Get(ctx, "memories/u.txt")
	if !ok || string(raw) != "x" {
		t.Fatalf("expected raw key memories/u.txt in store, got %q ok=%v", raw, ok)
	}
}

func TestCompositeBackendRoutesByPrefix(t *testing.T) {
	ctx := context.Background()
	state := backend.NewStateBackend(nil)
	store := backend.NewStoreBackend(backend.NewMemoryStore(), "/memories")
	c := backend.NewCompositeBackend(state, map[string]backend.Backend{"/memories/": store})

	if err := c.Write(ctx, "/memories/u.txt", []byte("persisted"), true); err != nil {
		t.Fatalf("Write via composite: %v", err)
	}
	if err := c.Write(ctx, "/tmp.txt", []byte("ephemeral"), true); err != nil {
		t.Fatalf("Write via composite: %v", err)
	}

	if ok, _ := store.Exists(ctx, "/memories/u.txt"); !ok {
		t.Fatalf("expected /memories/u.txt routed to store backend")
	}
	if ok, _ := state.Exists(ctx, "/memories/u.txt"); ok {
		t.Fatalf("did not expect /memories/u.txt to also land in state backend")
	}
	if ok, _ := state.Exists(ctx, "/tmp.txt"); !ok {
		t.Fatalf("expected /tmp.txt routed to default state backend")
	}
}
