package state

import "testing"

func TestNewAssignsIdentifiers(t *testing.T) {
	s := New()
	if s.RunID == "" || s.ThreadID == "" {
		t.Fatalf("New() left RunID/ThreadID empty: %+v", s)
	}
	if s.Files == nil {
		t.Fatalf("New() left Files nil")
	}
}

func TestNewChildDerivesThreadID(t *testing.T) {
	c := NewChild("parent-thread", "call-1")
	want := "parent-thread:call-1"
	if c.ThreadID != want {
		t.Fatalf("ThreadID = %q, want %q", c.ThreadID, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.AppendMessage(NewUserMessage("hi"))
	s.Files["a.txt"] = []byte("hello")

	clone := s.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Files["a.txt"][0] = 'X'

	if s.Messages[0].Content != "hi" {
		t.Fatalf("mutating clone's message leaked into original: %q", s.Messages[0].Content)
	}
	if s.Files["a.txt"][0] != 'h' {
		t.Fatalf("mutating clone's file bytes leaked into original")
	}
}

func TestLastAssistantMessage(t *testing.T) {
	s := New()
	s.AppendMessage(NewUserMessage("q"))
	s.AppendMessage(NewAssistantMessage("a1"))
	s.AppendMessage(NewToolMessage("call-1", "result"))

	msg, ok := s.LastAssistantMessage()
	if !ok {
		t.Fatalf("expected an assistant message")
	}
	if msg.Content != "a1" {
		t.Fatalf("LastAssistantMessage = %q, want %q", msg.Content, "a1")
	}
}

func TestTodoValidate(t *testing.T) {
	cases := []struct {
		name    string
		todo    Todo
		wantErr bool
	}{
		{"valid", Todo{ID: "1", Content: "write tests", Status: TodoPending}, false},
		{"empty content", Todo{ID: "1", Content: "", Status: TodoPending}, true},
		{"bad status", Todo{ID: "1", Content: "x", Status: "bogus"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.todo.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewCheckpointSnapshotsIndependently(t *testing.T) {
	s := New()
	s.AppendMessage(NewUserMessage("hi"))

	cp := NewCheckpoint(1, s)
	s.AppendMessage(NewAssistantMessage("later"))

	if len(cp.State.Messages) != 1 {
		t.Fatalf("checkpoint captured %d messages, want 1 (later mutation should not leak in)", len(cp.State.Messages))
	}
	if cp.ThreadID != s.ThreadID {
		t.Fatalf("checkpoint ThreadID = %q, want %q", cp.ThreadID, s.ThreadID)
	}
}
