package summarization_test

import (
	"context"
	"strings"
	"testing"

	"github.com/package-register/deepagent-go/dagent/config"
	"github.com/package-register/deepagent-go/dagent/middleware/summarization"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
)

// fixedCounter reports a fixed token count per message regardless of
// content, so tests can reason about thresholds in terms of message counts
// rather than string lengths.
type fixedCounter struct{ perMessage int }

func (c fixedCounter) Count(ctx context.Context, msgs []state.Message) int {
	return len(msgs) * c.perMessage
}

type summarizeModel struct {
	calls int
}

func (m *summarizeModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, error) {
	m.calls++
	ch := make(chan model.Response, 1)
	ch <- model.Response{
		Choices: []model.Choice{{Message: state.NewAssistantMessage("summary of earlier turns")}},
		Done:    true,
	}
	close(ch)
	return ch, nil
}

func newState(msgs ...state.Message) *state.AgentState {
	s := state.New()
	for _, m := range msgs {
		s.AppendMessage(m)
	}
	return s
}

func TestBeforeModelNoopBelowHighWaterMark(t *testing.T) {
	mdl := &summarizeModel{}
	cfg := config.Config{SummarizationHighWaterTokens: 1000, SummarizationLowWaterTokens: 500}
	mw := summarization.New(mdl, fixedCounter{perMessage: 10}, cfg)

	s := newState(
		state.NewUserMessage("hi"),
		state.NewAssistantMessage("hello"),
	)
	decision, err := mw.BeforeModel(context.Background(), s)
	if err != nil {
		t.Fatalf("BeforeModel: %v", err)
	}
	if decision.Kind != 0 {
		t.Fatalf("decision.Kind = %v, want ModelContinue", decision.Kind)
	}
	if mdl.calls != 0 {
		t.Fatalf("model should not have been invoked below the high-water mark")
	}
	if len(s.SnapshotMessages()) != 2 {
		t.Fatalf("messages should be untouched")
	}
}

func TestBeforeModelCompactsAboveHighWaterMark(t *testing.T) {
	mdl := &summarizeModel{}
	// 10 tokens/message, high-water at 80 (8 messages), low-water at 30
	// (3 messages) so only the most recent turn survives uncompacted.
	cfg := config.Config{SummarizationHighWaterTokens: 80, SummarizationLowWaterTokens: 30}
	mw := summarization.New(mdl, fixedCounter{perMessage: 10}, cfg)

	s := newState(
		state.NewUserMessage("turn one"),
		state.NewAssistantMessage("reply one"),
		state.NewUserMessage("turn two"),
		state.NewAssistantMessage("reply two"),
		state.NewUserMessage("turn three"),
		state.NewAssistantMessage("reply three"),
		state.NewUserMessage("turn four"),
		state.NewAssistantMessage("reply four"),
	)

	if _, err := mw.BeforeModel(context.Background(), s); err != nil {
		t.Fatalf("BeforeModel: %v", err)
	}
	if mdl.calls != 1 {
		t.Fatalf("expected exactly one summarization call, got %d", mdl.calls)
	}

	msgs := s.SnapshotMessages()
	if len(msgs) == 0 || msgs[0].Role != state.RoleSystem {
		t.Fatalf("expected a leading summary system message, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "summary of earlier turns") {
		t.Fatalf("summary content = %q", msgs[0].Content)
	}

	var sawTurnFour bool
	for _, m := range msgs[1:] {
		if m.Content == "turn four" {
			sawTurnFour = true
		}
		if m.Content == "turn one" {
			t.Fatalf("oldest turn should have been compacted away, found %q", m.Content)
		}
	}
	if !sawTurnFour {
		t.Fatalf("most recent turn should survive uncompacted, got %+v", msgs)
	}
}

func TestCompactionKeepsToolCallAndAnswerTogether(t *testing.T) {
	mdl := &summarizeModel{}
	cfg := config.Config{SummarizationHighWaterTokens: 50, SummarizationLowWaterTokens: 20}
	mw := summarization.New(mdl, fixedCounter{perMessage: 10}, cfg)

	s := newState(
		state.NewUserMessage("turn one"),
		state.NewAssistantMessage("reply one"),
		state.NewUserMessage("turn two, do a thing"),
		state.NewAssistantMessage("", state.ToolCall{ID: "c1", Name: "do_thing", Arguments: map[string]any{}}),
		state.NewToolMessage("c1", "thing done"),
		state.NewAssistantMessage("reply two"),
	)

	if _, err := mw.BeforeModel(context.Background(), s); err != nil {
		t.Fatalf("BeforeModel: %v", err)
	}

	msgs := s.SnapshotMessages()
	var sawCall, sawAnswer bool
	for _, m := range msgs {
		if m.Role == state.RoleAssistant {
			for _, tc := range m.ToolCalls {
				if tc.ID == "c1" {
					sawCall = true
				}
			}
		}
		if m.Role == state.RoleTool && m.ToolCallID == "c1" {
			sawAnswer = true
		}
	}
	if sawCall != sawAnswer {
		t.Fatalf("tool call and its answer must be kept or dropped together: call=%v answer=%v, msgs=%+v", sawCall, sawAnswer, msgs)
	}
}

func TestCompactionNoopWhenOnlyOneTurnExists(t *testing.T) {
	mdl := &summarizeModel{}
	cfg := config.Config{SummarizationHighWaterTokens: 5, SummarizationLowWaterTokens: 1}
	mw := summarization.New(mdl, fixedCounter{perMessage: 10}, cfg)

	s := newState(
		state.NewUserMessage("only turn"),
		state.NewAssistantMessage("only reply"),
	)
	if _, err := mw.BeforeModel(context.Background(), s); err != nil {
		t.Fatalf("BeforeModel: %v", err)
	}
	if mdl.calls != 0 {
		t.Fatalf("a single turn is below the kept floor and must not be compacted")
	}
	if len(s.SnapshotMessages()) != 2 {
		t.Fatalf("messages should be untouched")
	}
}
