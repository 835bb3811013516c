// Package todolist implements §4.D.1: write_todos/read_todos over the
// state's todo scratchpad. There is no teacher or pack analogue for a todo
// tool specifically; this is new code in the teacher's function-tool idiom
// (tools/extra_tools.go's request/response-struct pattern). It is built on
// the standard library only: the operation is pure in-memory list
// validation and replacement, with no I/O, parsing, or algorithmic surface
// a third-party library would serve.
package todolist

import (
	"context"

	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

// plannerInstructions is injected into the system prompt by the assembly
// layer (dagent/agent) for any harness carrying this middleware.
const plannerInstructions = `You have access to write_todos and read_todos to track a multi-step plan.
Call write_todos with the full list every time it changes; it always replaces
the prior list wholesale. Mark items in_progress before starting them and
completed once genuinely done.`

// Instructions returns the planner system-prompt fragment this middleware
// contributes.
func Instructions() string { return plannerInstructions }

type todoItem struct {
	ID      string `json:"id" jsonschema:"description=unique identifier for this item"`
	Content string `json:"content" jsonschema:"description=human-readable description of the task"`
	Status  string `json:"status" jsonschema:"description=one of pending, in_progress, completed"`
}

type writeTodosRequest struct {
	Items []todoItem `json:"items" jsonschema:"description=the complete todo list, replacing any prior list"`
}

type writeTodosResponse struct {
	Count int `json:"count"`
}

type readTodosRequest struct{}

type readTodosResponse struct {
	Items []todoItem `json:"items"`
}

// Middleware contributes write_todos/read_todos. It has no before/after
// hooks: its entire behavioral contract is "todos mirrors the last accepted
// write exactly" (§4.D.1), enforced inside the write_todos handler itself.
type Middleware struct {
	tools []tool.Tool
}

// New builds the todolist middleware bound to s, the AgentState whose Todos
// field the tools read and replace.
func New(s *state.AgentState) *Middleware {
	m := &Middleware{}
	write := tool.NewFunctionTool("write_todos", "Replace the full todo list.",
		func(ctx context.Context, req *writeTodosRequest) (*writeTodosResponse, error) {
			todos := make([]state.Todo, 0, len(req.Items))
			for _, it := range req.Items {
				todo := state.Todo{ID: it.ID, Content: it.Content, Status: state.TodoStatus(it.Status)}
				if err := todo.Validate(); err != nil {
					return nil, dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments, "%s", err)
				}
				todos = append(todos, todo)
			}
			s.ReplaceTodos(todos)
			return &writeTodosResponse{Count: len(todos)}, nil
		})
	read := tool.NewFunctionTool("read_todos", "Read the current todo list.",
		func(ctx context.Context, _ *readTodosRequest) (*readTodosResponse, error) {
			todos := s.SnapshotTodos()
			items := make([]todoItem, len(todos))
			for i, t := range todos {
				items[i] = todoItem{ID: t.ID, Content: t.Content, Status: string(t.Status)}
			}
			return &readTodosResponse{Items: items}, nil
		})
	m.tools = []tool.Tool{write, read}
	return m
}

func (m *Middleware) Name() string       { return "todolist" }
func (m *Middleware) Tools() []tool.Tool { return m.tools }
