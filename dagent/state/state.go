package state

import (
	"sync"

	"github.com/google/uuid"
)

// AgentState is the single mutable record threaded through a run (§3).
//
// Messages is append-only within a turn, but rewritable wholesale by the
// summarization middleware. Files is populated only when the active
// backend is the in-state backend (backend.StateBackend); other backends
// leave it empty. AgentState is single-writer per step (§5): only the
// currently running hook or tool mutates it, so no internal locking is
// required for Messages/Todos/Files — callers provide the serialization
// the step loop guarantees. PendingInterrupt is non-nil only for a
// suspended run awaiting a human decision.
type AgentState struct {
	Messages []Message
	Todos    []Todo
	Files    map[string][]byte

	RunID    string
	ThreadID string

	PendingInterrupt *Interrupt

	// mu guards concurrent reads that race with the writer's mutation
	// during a step (e.g. a parallel sub-agent dispatch reading the
	// parent's Files map for "shared" prefix propagation).
	mu sync.RWMutex
}

// New creates an empty AgentState with freshly generated identifiers.
func New() *AgentState {
	return &AgentState{
		RunID:    uuid.NewString(),
		ThreadID: uuid.NewString(),
		Files:    make(map[string][]byte),
	}
}

// NewChild creates an isolated child AgentState for a sub-agent dispatch
// (§4.E step 3): fresh messages seeded with the system prompt and user
// description, no todos, a distinct thread id derived from the parent's.
func NewChild(parentThreadID, callID string) *AgentState {
	return &AgentState{
		RunID:    uuid.NewString(),
		ThreadID: parentThreadID + ":" + callID,
		Files:    make(map[string][]byte),
	}
}

// Clone produces a deep-enough copy suitable for a checkpoint snapshot:
// slices and maps are copied so that subsequent in-place mutation of the
// live state does not retroactively alter a persisted checkpoint.
func (s *AgentState) Clone() *AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &AgentState{
		RunID:    s.RunID,
		ThreadID: s.ThreadID,
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	if s.Todos != nil {
		out.Todos = append([]Todo(nil), s.Todos...)
	}
	if s.Files != nil {
		out.Files = make(map[string][]byte, len(s.Files))
		for k, v := range s.Files {
			cp := append([]byte(nil), v...)
			out.Files[k] = cp
		}
	}
	if s.PendingInterrupt != nil {
		cp := *s.PendingInterrupt
		out.PendingInterrupt = &cp
	}
	return out
}

// SnapshotFiles returns a copy of the current in-state files map, used by
// the sub-agent dispatcher to read a finished child's files for shared-
// prefix propagation (§4.E step 5).
func (s *AgentState) SnapshotFiles() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.Files))
	for k, v := range s.Files {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// MergeFiles copies files into s.Files, overwriting any existing entries
// at the same path. Used to propagate a child sub-agent's shared-prefix
// files back into the parent AgentState.
func (s *AgentState) MergeFiles(files map[string][]byte) {
	if len(files) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Files == nil {
		s.Files = make(map[string][]byte, len(files))
	}
	for k, v := range files {
		s.Files[k] = append([]byte(nil), v...)
	}
}

// LastAssistantMessage returns the most recent assistant message, if any.
func (s *AgentState) LastAssistantMessage() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// AppendMessage appends m under the write lock.
func (s *AgentState) AppendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
}

// ReplaceMessages atomically replaces the full message slice, used by the
// summarization middleware's compaction pass.
func (s *AgentState) ReplaceMessages(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = msgs
}

// SnapshotMessages returns a copy of the current message slice.
func (s *AgentState) SnapshotMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.Messages...)
}

// ReplaceTodos atomically replaces the full todo list (write_todos).
func (s *AgentState) ReplaceTodos(todos []Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Todos = todos
}

// SnapshotTodos returns a copy of the current todo list (read_todos).
func (s *AgentState) SnapshotTodos() []Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Todo(nil), s.Todos...)
}
