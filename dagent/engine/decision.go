package engine

import "github.com/package-register/deepagent-go/dagent/state"

// ModelKind is the outcome of a before_model hook (§4.C step 1).
type ModelKind int

const (
	// ModelContinue lets the step loop proceed to building the model
	// request.
	ModelContinue ModelKind = iota
	// ModelShortCircuit appends Message and skips straight to step 5
	// (termination check) without calling the model at all.
	ModelShortCircuit
	// ModelSuspend pauses the run with Interrupt, persists a checkpoint,
	// and surfaces the interrupt to the caller.
	ModelSuspend
)

// ModelDecision is returned by a BeforeModelMiddleware.
type ModelDecision struct {
	Kind      ModelKind
	Message   state.Message
	Interrupt *state.Interrupt
}

// ContinueModel lets the loop proceed unchanged.
func ContinueModel() ModelDecision { return ModelDecision{Kind: ModelContinue} }

// ShortCircuitModel appends msg and skips the model call this step.
func ShortCircuitModel(msg state.Message) ModelDecision {
	return ModelDecision{Kind: ModelShortCircuit, Message: msg}
}

// SuspendModel pauses the run pending a human decision.
func SuspendModel(interrupt *state.Interrupt) ModelDecision {
	return ModelDecision{Kind: ModelSuspend, Interrupt: interrupt}
}

// ToolKind is the outcome of a before_tool_call hook (§4.C step 4).
type ToolKind int

const (
	// ToolProceed dispatches Call (possibly rewritten by the hook) to the
	// registered tool.
	ToolProceed ToolKind = iota
	// ToolReplaceResult skips dispatch entirely; Result becomes the tool
	// message content as if the tool had run.
	ToolReplaceResult
	// ToolSuspend pauses the run before this call is dispatched.
	ToolSuspend
)

// ToolDecision is returned by a BeforeToolCallMiddleware.
type ToolDecision struct {
	Kind      ToolKind
	Call      state.ToolCall
	Result    string
	Interrupt *state.Interrupt
}

// ProceedTool dispatches call, possibly rewritten from the one offered to
// the hook (e.g. hitl's `edit` decision rewriting arguments).
func ProceedTool(call state.ToolCall) ToolDecision {
	return ToolDecision{Kind: ToolProceed, Call: call}
}

// ReplaceToolResult short-circuits dispatch with result as the answer.
func ReplaceToolResult(result string) ToolDecision {
	return ToolDecision{Kind: ToolReplaceResult, Result: result}
}

// SuspendTool pauses the run before call is dispatched.
func SuspendTool(interrupt *state.Interrupt) ToolDecision {
	return ToolDecision{Kind: ToolSuspend, Interrupt: interrupt}
}
