package state

// InterruptDecision is the human response to a suspended tool call.
type InterruptDecision string

const (
	DecisionApprove InterruptDecision = "approve"
	DecisionEdit    InterruptDecision = "edit"
	DecisionReject  InterruptDecision = "reject"
)

// Interrupt captures a run suspended by the hitl middleware pending a
// human decision on one tool call (§4.D.6). A run has at most one pending
// Interrupt at a time; the step loop refuses to advance past before_tool_call
// for the named call until Resolve produces a decision.
type Interrupt struct {
	ToolCallID string
	ToolName   string
	Arguments  map[string]any
	Reason     string
}

// Resolution is supplied by the caller resuming a suspended run.
type Resolution struct {
	Decision InterruptDecision
	// EditedArguments replaces Arguments when Decision is DecisionEdit.
	EditedArguments map[string]any
	// RejectMessage becomes the tool message content when Decision is
	// DecisionReject, standing in for the tool's own output.
	RejectMessage string
}
