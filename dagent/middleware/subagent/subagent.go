// Package subagent implements §4.D.4/§4.E: the `task(subagent_name,
// description)` tool and the dispatcher that drives an isolated child
// AgentState to completion against its own compiled middleware stack.
//
// Grounded on mcp/tools.go's named-registry pattern for resolving a
// sub-agent by name (nothing is cached here: a fresh runner is built for
// every dispatch), and on other_examples' pureclaw run_subagent.go.go for
// the isolation shape: a restricted tool registry distinct from the
// parent's and no access back into the parent's live state beyond what is
// explicitly propagated. The child runs under the caller's ctx; the
// dispatcher adds no timeout of its own.
package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/package-register/deepagent-go/dagent/checkpoint"
	"github.com/package-register/deepagent-go/dagent/config"
	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/engine"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

const taskToolName = "task"

// Definition declares one sub-agent (§3 SubAgent handle:
// {name, description, prompt, tools?, model?, runnable?}). Description is
// surfaced in the `task` tool's own description so the model can tell
// what each registered sub-agent is for. Model defaults to the
// dispatcher's default model if nil; ExtraTools are appended to the
// tools the child's compiled middleware stack already contributes,
// overriding on name collision. If Runnable is set, it is used as-is
// instead of being built from the enclosing stack (§3: "if runnable is
// present it is a pre-compiled agent"); otherwise a new runner is built
// for every dispatch from Prompt/Model/ExtraTools.
type Definition struct {
	Name        string
	Description string
	Prompt      string
	Model       model.Model
	ExtraTools  []tool.Tool
	Runnable    *engine.Runner
}

type taskRequest struct {
	SubagentName string `json:"subagent_name" jsonschema:"description=name of the registered sub-agent to dispatch"`
	Description  string `json:"description" jsonschema:"description=task description, becomes the child's sole user message"`
}

// unreachableResponse is FunctionTool's Rsp type parameter for the `task`
// tool; it is never actually produced because Middleware.BeforeToolCall
// always intercepts a task call and replaces its result before the
// registry's Call method would run.
type unreachableResponse struct{}

// MiddlewareFactory builds a fresh middleware stack bound to one
// AgentState. The harness assembly (dagent/agent) supplies this so every
// dispatched child gets its own instances of stateful middlewares —
// todolist and filesystem both close over the specific AgentState/backend
// they were built with, so reusing the parent's instances for a child
// would leak the child's writes straight into the parent, defeating the
// isolation §4.E requires and the shared-file-prefix propagation this
// package implements deliberately on top of it.
type MiddlewareFactory func(s *state.AgentState) []engine.Middleware

// Middleware contributes the `task` tool and dispatches it in
// before_tool_call, where it has the parent AgentState and ToolCall it
// needs (thread_id, call_id, arguments) that the plain Tool.Call(ctx, args)
// signature does not carry.
type Middleware struct {
	defs               map[string]Definition
	defaultModel       model.Model
	checkpointer       checkpoint.Checkpointer
	cfg                config.Config
	sharedFilePrefixes []string

	factory MiddlewareFactory
	sem     chan struct{}
}

// New builds the sub-agent dispatcher. sharedFilePrefixes lists the
// AgentState.Files path prefixes a child is allowed to propagate back to
// its parent on completion (§4.E step 5); everything else a child writes
// is discarded when it exits.
func New(defs []Definition, defaultModel model.Model, cp checkpoint.Checkpointer, cfg config.Config, sharedFilePrefixes []string) *Middleware {
	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}
	limit := cfg.ParallelSubAgentLimit
	if limit <= 0 {
		limit = config.Default().ParallelSubAgentLimit
	}
	return &Middleware{
		defs:               byName,
		defaultModel:       defaultModel,
		checkpointer:       cp,
		cfg:                cfg,
		sharedFilePrefixes: sharedFilePrefixes,
		sem:                make(chan struct{}, limit),
	}
}

func (m *Middleware) Name() string { return "sub_agents" }

// SetMiddlewareFactory must be called once, after the enclosing harness's
// assembly function knows how to build its own stack for an arbitrary
// AgentState, so every dispatched child gets a freshly built stack (minus
// this middleware itself, unless config.AllowRecursiveSubAgent; §4.E step
// 2) bound to the child's own state instead of the parent's.
func (m *Middleware) SetMiddlewareFactory(factory MiddlewareFactory) {
	m.factory = factory
}

func (m *Middleware) Tools() []tool.Tool {
	fn := tool.NewFunctionTool(taskToolName,
		m.taskDescription(),
		func(ctx context.Context, req *taskRequest) (*unreachableResponse, error) {
			return nil, fmt.Errorf("task: dispatched via before_tool_call, this handler should never run")
		})
	return []tool.Tool{pureTask{fn}}
}

// taskDescription lists every registered sub-agent and its purpose so the
// model can choose one by name instead of guessing from a generic
// "dispatch a child agent" blurb (§3: the handle's description field
// exists so "the model has a way to learn what a registered sub-agent
// does").
func (m *Middleware) taskDescription() string {
	if len(m.defs) == 0 {
		return "Dispatch an isolated child agent by name with a task description; returns the child's final answer as text. No sub-agents are currently registered."
	}
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Dispatch an isolated child agent by name with a task description; returns the child's final answer as text. Available sub-agents:\n")
	for _, name := range names {
		desc := m.defs[name].Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

// pureTask marks `task` as side-effect-free from the parent's perspective
// (§5 point 1): a child's own writes never touch the parent's state except
// through the explicit, mutex-guarded shared-file merge in dispatch, so
// sibling task calls within one assistant message are safe for the
// engine's existing pure-tool fan-out (§5 point 2) to run concurrently.
// The dispatcher's own semaphore then bounds that fan-out at
// ParallelSubAgentLimit regardless of how many siblings the engine spins
// up.
type pureTask struct{ tool.Tool }

func (pureTask) Pure() bool { return true }

// BeforeToolCall intercepts every `task` call, running the dispatch
// synchronously and replacing the tool result rather than letting the
// engine invoke the placeholder registry entry.
func (m *Middleware) BeforeToolCall(ctx context.Context, s *state.AgentState, call state.ToolCall) (engine.ToolDecision, error) {
	if call.Name != taskToolName {
		return engine.ProceedTool(call), nil
	}
	return engine.ReplaceToolResult(m.dispatch(ctx, s, call)), nil
}

func (m *Middleware) dispatch(ctx context.Context, s *state.AgentState, call state.ToolCall) string {
	raw, err := json.Marshal(call.Arguments)
	if err != nil {
		return errorJSON(dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments, "task: marshal arguments: %v", err))
	}
	var req taskRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorJSON(dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments, "task: decode arguments: %v", err))
	}

	def, ok := m.defs[req.SubagentName]
	if !ok {
		return errorJSON(dagerr.New(dagerr.KindSubAgent, dagerr.CodeUnknownSubAgent, "unknown sub-agent %q", req.SubagentName))
	}

	// §4.E concurrency: bounded sibling parallelism. The engine already
	// parallelizes the calls in one assistant message when every one of
	// them is a PureTool (pureTask opts in); this semaphore enforces the
	// distinct, explicitly configured ParallelSubAgentLimit regardless of
	// how many goroutines that fan-out spins up.
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	child := state.NewChild(s.ThreadID, call.ID)
	child.AppendMessage(state.NewSystemMessage(def.Prompt))
	child.AppendMessage(state.NewUserMessage(req.Description))

	runner, err := m.buildRunner(def, child)
	if err != nil {
		return errorJSON(dagerr.Wrap(dagerr.KindSubAgent, dagerr.CodeCompilationFailed, err))
	}

	if err := runner.Run(ctx, child); err != nil {
		return errorJSON(dagerr.Wrap(dagerr.KindSubAgent, dagerr.CodeChildFailed, err))
	}

	text := ""
	if last, ok := child.LastAssistantMessage(); ok {
		text = last.Content
	}

	if len(m.sharedFilePrefixes) > 0 {
		shared := filterByPrefix(child.SnapshotFiles(), m.sharedFilePrefixes)
		s.MergeFiles(shared)
	}

	return text
}

// buildRunner constructs a fresh Runner for def, bound to child: a newly
// built middleware stack (via the factory) so every stateful middleware in
// it (todolist, filesystem) closes over child rather than the parent,
// plus this definition's own ExtraTools layered on top.
func (m *Middleware) buildRunner(def Definition, child *state.AgentState) (*engine.Runner, error) {
	if def.Runnable != nil {
		return def.Runnable, nil
	}
	if m.factory == nil {
		return nil, fmt.Errorf("sub-agent dispatcher: SetMiddlewareFactory was never called")
	}

	built := m.factory(child)
	childMiddlewares := make([]engine.Middleware, 0, len(built))
	for _, mw := range built {
		// Excluded by type, not instance: the factory constructs a brand
		// new *Middleware for every call, so pointer identity with m would
		// never match self-recursion anyway.
		if _, ok := mw.(*Middleware); ok && !m.cfg.AllowRecursiveSubAgent {
			continue
		}
		childMiddlewares = append(childMiddlewares, mw)
	}

	childTools := append([]tool.Tool{}, engine.Tools(childMiddlewares)...)
	childTools = append(childTools, def.ExtraTools...)

	mdl := m.defaultModel
	if def.Model != nil {
		mdl = def.Model
	}

	registry := tool.NewRegistry(tool.StaticSet(childTools))
	return engine.NewRunner(mdl, childMiddlewares, registry, m.checkpointer, m.cfg), nil
}

func filterByPrefix(files map[string][]byte, prefixes []string) map[string][]byte {
	out := make(map[string][]byte)
	for path, data := range files {
		for _, prefix := range prefixes {
			if hasPrefix(path, prefix) {
				out[path] = data
				break
			}
		}
	}
	return out
}

func hasPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

func errorJSON(err error) string {
	code := dagerr.CodeUnknownSubAgent
	kind := dagerr.KindSubAgent
	if e, ok := dagerr.As(err); ok {
		code = e.Code
		kind = e.Kind
	}
	payload, merr := json.Marshal(map[string]string{
		"status": "error",
		"kind":   string(kind),
		"code":   string(code),
		"error":  err.Error(),
	})
	if merr != nil {
		return fmt.Sprintf(`{"status":"error","error":%q}`, err.Error())
	}
	return string(payload)
}
