// Package tool defines the schema surface a Tool exposes to the model
// (§6.1) and the ToolSet grouping middlewares use to contribute tools to
// the pipeline.
package tool

import (
	"context"
	"sort"

	"github.com/package-register/deepagent-go/dagent/model"
)

// Tool is anything callable by name with a fixed argument schema.
type Tool interface {
	Name() string
	Description() string
	Declaration() model.ToolDeclaration
	// Call invokes the tool, returning the string content for the tool
	// message that answers the call.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// PureTool is an optional capability a Tool implements to declare itself
// side-effect-free (§5: "a tool may opt in to parallel-safe execution via a
// flag consulted by the pipeline"). Tools are assumed non-pure by default;
// the engine only runs sibling calls within one assistant message
// concurrently when every one of them implements PureTool and reports true.
type PureTool interface {
	Pure() bool
}

// IsPure reports whether t opted into parallel-safe execution.
func IsPure(t Tool) bool {
	p, ok := t.(PureTool)
	return ok && p.Pure()
}

// ToolSet groups related tools under one name (e.g. the Filesystem
// middleware's contribution), mirroring the teacher's tool.ToolSet usage
// for MCP/extra-tool groups.
type ToolSet interface {
	Tools() []Tool
}

// StaticSet is the simplest ToolSet: a fixed, pre-built list.
type StaticSet []Tool

func (s StaticSet) Tools() []Tool { return s }

// Registry resolves tool names to Tool values across every contributed
// ToolSet, used by the engine to dispatch `before_tool_call`.
type Registry struct {
	byName map[string]Tool
}

// NewRegistry builds a Registry from a list of tool sets, later sets
// overriding earlier ones on name collision.
func NewRegistry(sets ...ToolSet) *Registry {
	r := &Registry{byName: make(map[string]Tool)}
	for _, s := range sets {
		for _, t := range s.Tools() {
			r.byName[t.Name()] = t
		}
	}
	return r
}

// Lookup returns the named tool, if registered.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Declarations returns every registered tool's wire declaration, in a
// stable order suitable for a model.Request.
func (r *Registry) Declarations() []model.ToolDeclaration {
	out := make([]model.ToolDeclaration, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t.Declaration())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns every registered tool.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	return out
}
