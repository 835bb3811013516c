package filesystem_test

import (
	"context"
	"strings"
	"testing"

	"github.com/package-register/deepagent-go/dagent/backend"
	"github.com/package-register/deepagent-go/dagent/middleware/filesystem"
	"github.com/package-register/deepagent-go/dagent/state"
)

func lookup(t *testing.T, mw *filesystem.Middleware, name string) func(map[string]any) (string, error) {
	t.Helper()
	for _, tl := range mw.Tools() {
		if tl.Name() == name {
			return func(args map[string]any) (string, error) { return tl.Call(context.Background(), args) }
		}
	}
	t.Fatalf("tool %q not contributed", name)
	return nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := backend.NewStateBackend(nil)
	mw := filesystem.New(b, 0)
	write := lookup(t, mw, "write_file")
	read := lookup(t, mw, "read_file")

	if _, err := write(map[string]any{"path": "/a.txt", "content": "hello", "create_parents": true}); err != nil {
		t.Fatalf("write_file: %v", err)
	}
	out, err := read(map[string]any{"path": "/a.txt"})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	if out != `{"content":"hello"}` {
		t.Fatalf("read_file output = %q", out)
	}
}

func TestNoExecuteToolWithoutExecutorBackend(t *testing.T) {
	b := backend.NewStateBackend(nil)
	mw := filesystem.New(b, 0)
	for _, tl := range mw.Tools() {
		if tl.Name() == "execute" {
			t.Fatalf("did not expect an execute tool over a non-Executor backend")
		}
	}
}

func TestContextOffloadSpillsLargeResult(t *testing.T) {
	b := backend.NewStateBackend(nil)
	mw := filesystem.New(b, 10)

	s := state.New()
	call := state.ToolCall{ID: "call-1", Name: "some_tool"}
	big := strings.Repeat("x", 50)

	stub, err := mw.AfterToolCall(context.Background(), s, call, big)
	if err != nil {
		t.Fatalf("AfterToolCall: %v", err)
	}
	if !strings.Contains(stub, "/tool_outputs/call-1") {
		t.Fatalf("stub = %q, want a reference to /tool_outputs/call-1", stub)
	}
	if !strings.Contains(stub, "50 bytes written") {
		t.Fatalf("stub = %q, want a byte count", stub)
	}

	spilled, err := b.Read(context.Background(), "/tool_outputs/call-1", 0, 0)
	if err != nil {
		t.Fatalf("Read spilled output: %v", err)
	}
	if string(spilled) != big {
		t.Fatalf("spilled content mismatch")
	}
}

func TestContextOffloadLeavesSmallResultUntouched(t *testing.T) {
	b := backend.NewStateBackend(nil)
	mw := filesystem.New(b, 10_000)
	s := state.New()
	call := state.ToolCall{ID: "call-2"}

	out, err := mw.AfterToolCall(context.Background(), s, call, "small")
	if err != nil {
		t.Fatalf("AfterToolCall: %v", err)
	}
	if out != "small" {
		t.Fatalf("expected result untouched, got %q", out)
	}
}
