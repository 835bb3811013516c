package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/package-register/deepagent-go/dagent/agent"
	"github.com/package-register/deepagent-go/dagent/middleware/hitl"
	"github.com/package-register/deepagent-go/dagent/middleware/subagent"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
)

// scriptedModel replies with one message per Generate call; a harness
// under test and any sub-agent it dispatches to get their own instance.
type scriptedModel struct {
	replies []state.Message
	calls   int
}

func (m *scriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, error) {
	msg := m.replies[m.calls]
	m.calls++
	ch := make(chan model.Response, 1)
	ch <- model.Response{Choices: []model.Choice{{Message: msg}}, Done: true}
	close(ch)
	return ch, nil
}

// TestHarnessWiresPlannerFilesystemAndSubAgent drives one run through
// write_todos, write_file, and a task dispatch to a sub-agent in a single
// assembled stack, confirming middlewaresFor's ordering produces a runner
// where every contributed tool is reachable and the child dispatch is
// correctly isolated from the parent's state.
func TestHarnessWiresPlannerFilesystemAndSubAgent(t *testing.T) {
	childModel := &scriptedModel{replies: []state.Message{
		state.NewAssistantMessage("child finished the research"),
	}}

	parentModel := &scriptedModel{replies: []state.Message{
		state.NewAssistantMessage("", state.ToolCall{
			ID:        "c1",
			Name:      "write_todos",
			Arguments: map[string]any{"items": []map[string]any{{"id": "1", "content": "investigate", "status": "in_progress"}}},
		}),
		state.NewAssistantMessage("", state.ToolCall{
			ID:        "c2",
			Name:      "write_file",
			Arguments: map[string]any{"path": "/notes.txt", "content": "findings"},
		}),
		state.NewAssistantMessage("", state.ToolCall{
			ID:   "c3",
			Name: "task",
			Arguments: map[string]any{
				"subagent_name": "researcher",
				"description":   "look into it",
			},
		}),
		state.NewAssistantMessage("all done"),
	}}

	h, err := agent.New(agent.Options{
		Model:        parentModel,
		SystemPrompt: "you are the orchestrator",
		SubAgents: []subagent.Definition{
			{Name: "researcher", Prompt: "you are a researcher", Model: childModel},
		},
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	s := h.NewState()
	s.AppendMessage(state.NewUserMessage("get started"))

	if err := h.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := s.SnapshotMessages()

	var gotTodo, gotFile, gotTask bool
	for _, msg := range msgs {
		if msg.Role != state.RoleTool {
			continue
		}
		switch msg.ToolCallID {
		case "c1":
			gotTodo = true
		case "c2":
			gotFile = true
		case "c3":
			gotTask = true
			if msg.Content != "child finished the research" {
				t.Fatalf("task tool message content = %q, want the child's final text", msg.Content)
			}
		}
	}
	if !gotTodo {
		t.Fatalf("expected a tool message answering write_todos call c1")
	}
	if !gotFile {
		t.Fatalf("expected a tool message answering write_file call c2")
	}
	if !gotTask {
		t.Fatalf("expected a tool message answering task call c3")
	}

	if len(s.SnapshotTodos()) != 1 {
		t.Fatalf("expected the parent's todo list to hold the one written item, got %d", len(s.SnapshotTodos()))
	}

	if _, ok := s.Files["/notes.txt"]; !ok {
		t.Fatalf("expected write_file to land in the parent's own backend")
	}
}

// TestHarnessSystemPromptComposesUserPromptAndPlannerInstructions confirms
// NewState seeds a system message carrying both halves.
func TestHarnessSystemPromptComposesUserPromptAndPlannerInstructions(t *testing.T) {
	h, err := agent.New(agent.Options{
		Model:        &scriptedModel{},
		SystemPrompt: "you are the orchestrator",
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	s := h.NewState()
	msgs := s.SnapshotMessages()
	if len(msgs) != 1 || msgs[0].Role != state.RoleSystem {
		t.Fatalf("expected exactly one leading system message, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "you are the orchestrator") {
		t.Fatalf("system message missing caller prompt: %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[0].Content, "write_todos") {
		t.Fatalf("system message missing planner instructions: %q", msgs[0].Content)
	}
}

// TestHarnessSuspendsForGatedToolAndResumesAfterResolve exercises the
// human-in-the-loop slot at the outermost stack position: a gated tool
// call suspends the run, and only resolves once a decision is recorded.
func TestHarnessSuspendsForGatedToolAndResumesAfterResolve(t *testing.T) {
	m := &scriptedModel{replies: []state.Message{
		state.NewAssistantMessage("", state.ToolCall{
			ID:        "c1",
			Name:      "write_file",
			Arguments: map[string]any{"path": "/danger.txt", "content": "x"},
		}),
		state.NewAssistantMessage("finished"),
	}}

	h, err := agent.New(agent.Options{
		Model: m,
		HITLGates: map[string]hitl.Gate{
			"write_file": {AllowedDecisions: []state.InterruptDecision{state.DecisionApprove, state.DecisionReject}},
		},
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	s := h.NewState()
	s.AppendMessage(state.NewUserMessage("write it"))

	if err := h.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.PendingInterrupt == nil {
		t.Fatalf("expected the run to suspend for the gated write_file call")
	}

	h.HITL().Resolve("c1", state.Resolution{Decision: state.DecisionApprove})
	if err := h.Resume(context.Background(), s, len(s.SnapshotMessages())); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.PendingInterrupt != nil {
		t.Fatalf("expected the run to clear PendingInterrupt after resuming")
	}
}
