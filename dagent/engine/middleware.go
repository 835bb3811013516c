// Package engine implements the middleware pipeline and step loop of §4.C:
// five optional hook points composed in stack order, a five-step loop that
// checkpoints at every iteration boundary, and the suspend/resume contract
// that lets a caller drive a human-in-the-loop decision back in.
//
// A Middleware declares which hooks it implements by implementing the
// corresponding optional interface below, mirroring the "nil if unused"
// capability idiom the teacher's pipeline.Middleware/flow.MiddlewareChain
// use for WrapPreNode/WrapPostNode — here expressed as Go interface
// assertions (the same pattern dagent/backend.SupportsExecute already
// uses) rather than callbacks that return nil, since a hook's result is a
// Decision, not a callback value.
package engine

import (
	"context"

	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

// Middleware is the marker every pipeline participant implements. A
// middleware with no hooks at all (only contributing tools, say) still
// needs a Name for logging/diagnostics.
type Middleware interface {
	Name() string
}

// ToolContributor is implemented by a middleware that adds tools to the
// registry (e.g. todolist's write_todos/read_todos, filesystem's ls/read_file).
type ToolContributor interface {
	Middleware
	Tools() []tool.Tool
}

// BeforeModelMiddleware runs before each model call, in stack order.
type BeforeModelMiddleware interface {
	Middleware
	BeforeModel(ctx context.Context, s *state.AgentState) (ModelDecision, error)
}

// ModelRequestMiddleware mutates the outgoing model request.
type ModelRequestMiddleware interface {
	Middleware
	ModifyModelRequest(ctx context.Context, req model.Request, s *state.AgentState) (model.Request, error)
}

// AfterModelMiddleware runs after each model response, in reverse stack
// order, and may rewrite the assistant message before it is appended.
type AfterModelMiddleware interface {
	Middleware
	AfterModel(ctx context.Context, s *state.AgentState, assistant state.Message) (state.Message, error)
}

// BeforeToolCallMiddleware runs per tool call, in stack order.
type BeforeToolCallMiddleware interface {
	Middleware
	BeforeToolCall(ctx context.Context, s *state.AgentState, call state.ToolCall) (ToolDecision, error)
}

// AfterToolCallMiddleware runs per tool call, in reverse stack order, and
// may rewrite the tool result before it is appended as a tool message.
type AfterToolCallMiddleware interface {
	Middleware
	AfterToolCall(ctx context.Context, s *state.AgentState, call state.ToolCall, result string) (string, error)
}

func asToolContributor(m Middleware) (ToolContributor, bool) {
	t, ok := m.(ToolContributor)
	return t, ok
}

func asBeforeModel(m Middleware) (BeforeModelMiddleware, bool) {
	t, ok := m.(BeforeModelMiddleware)
	return t, ok
}

func asModelRequest(m Middleware) (ModelRequestMiddleware, bool) {
	t, ok := m.(ModelRequestMiddleware)
	return t, ok
}

func asAfterModel(m Middleware) (AfterModelMiddleware, bool) {
	t, ok := m.(AfterModelMiddleware)
	return t, ok
}

func asBeforeToolCall(m Middleware) (BeforeToolCallMiddleware, bool) {
	t, ok := m.(BeforeToolCallMiddleware)
	return t, ok
}

func asAfterToolCall(m Middleware) (AfterToolCallMiddleware, bool) {
	t, ok := m.(AfterToolCallMiddleware)
	return t, ok
}
