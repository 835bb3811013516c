package patch_test

import (
	"context"
	"strings"
	"testing"

	"github.com/package-register/deepagent-go/dagent/middleware/patch"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

func newRegistry(names ...string) *tool.Registry {
	var tools []tool.Tool
	for _, n := range names {
		tools = append(tools, fakeTool{name: n})
	}
	return tool.NewRegistry(tool.StaticSet(tools))
}

type fakeTool struct{ name string }

func (t fakeTool) Name() string        { return t.name }
func (t fakeTool) Description() string { return "" }
func (t fakeTool) Declaration() model.ToolDeclaration {
	return model.ToolDeclaration{Name: t.name}
}
func (t fakeTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return "", nil
}

func TestRepairAddsCancellationForDanglingCall(t *testing.T) {
	reg := newRegistry("search")
	mw := patch.New(reg)

	s := state.New()
	s.AppendMessage(state.NewUserMessage("go"))
	s.AppendMessage(state.NewAssistantMessage("", state.ToolCall{ID: "c1", Name: "search"}))

	if _, err := mw.BeforeModel(context.Background(), s); err != nil {
		t.Fatalf("BeforeModel: %v", err)
	}

	msgs := s.SnapshotMessages()
	last := msgs[len(msgs)-1]
	if last.Role != state.RoleTool || last.ToolCallID != "c1" {
		t.Fatalf("expected a synthesized cancellation tool message, got %+v", last)
	}
	if !strings.Contains(last.Content, "cancelled") {
		t.Fatalf("cancellation payload = %q", last.Content)
	}
}

func TestRepairLeavesAnsweredCallsAlone(t *testing.T) {
	reg := newRegistry("search")
	mw := patch.New(reg)

	s := state.New()
	s.AppendMessage(state.NewAssistantMessage("", state.ToolCall{ID: "c1", Name: "search"}))
	s.AppendMessage(state.NewToolMessage("c1", "ok"))

	if _, err := mw.BeforeModel(context.Background(), s); err != nil {
		t.Fatalf("BeforeModel: %v", err)
	}
	msgs := s.SnapshotMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected no change, got %+v", msgs)
	}
}

func TestRepairStripsMessageWithOnlyUnknownToolCalls(t *testing.T) {
	reg := newRegistry("search")
	mw := patch.New(reg)

	s := state.New()
	s.AppendMessage(state.NewUserMessage("go"))
	s.AppendMessage(state.NewAssistantMessage("", state.ToolCall{ID: "c1", Name: "does_not_exist"}))
	s.AppendMessage(state.NewAssistantMessage("final answer"))

	if _, err := mw.BeforeModel(context.Background(), s); err != nil {
		t.Fatalf("BeforeModel: %v", err)
	}
	msgs := s.SnapshotMessages()
	for _, msg := range msgs {
		for _, c := range msg.ToolCalls {
			if c.Name == "does_not_exist" {
				t.Fatalf("expected the unknown-tool call stripped, found %+v", msg)
			}
		}
	}
	if len(msgs) != 2 {
		t.Fatalf("expected the invalid message removed, got %+v", msgs)
	}
}
