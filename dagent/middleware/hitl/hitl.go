// Package hitl implements §4.D.6: human-in-the-loop approval gates. It is
// configured with a mapping from tool name to the set of decisions a human
// is allowed to make for that tool, and suspends the run in before_tool_call
// for any configured call until a Resolution has been recorded for it.
//
// Grounded on pipeline/interfaces.go's before-hook short-circuit shape
// (a hook can veto or rewrite a step before it runs) generalized here to a
// suspend outcome, since this harness's pipeline threads Decision values
// rather than callbacks. The resolution bookkeeping (a call-ID-keyed map
// guarded by a mutex, consulted once then discarded) mirrors
// mcp/tools.go's lazily-populated, mutex-guarded cache idiom.
package hitl

import (
	"context"
	"sync"

	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/engine"
	"github.com/package-register/deepagent-go/dagent/state"
)

// Gate configures which decisions a human may make for one tool.
type Gate struct {
	AllowedDecisions []state.InterruptDecision
}

func (g Gate) allows(d state.InterruptDecision) bool {
	for _, a := range g.AllowedDecisions {
		if a == d {
			return true
		}
	}
	return false
}

// Middleware suspends before dispatching any tool named in its gate
// configuration, until Resolve has been called for that call ID.
type Middleware struct {
	gates map[string]Gate

	mu          sync.Mutex
	resolutions map[string]state.Resolution
}

// New builds the human-in-the-loop middleware. gates maps tool name to the
// decisions permitted for that tool.
func New(gates map[string]Gate) *Middleware {
	return &Middleware{
		gates:       gates,
		resolutions: make(map[string]state.Resolution),
	}
}

func (m *Middleware) Name() string { return "human_in_the_loop" }

// Resolve records the human's decision for callID, to be consumed the next
// time BeforeToolCall sees that call. Call this, then Runner.Resume, to
// continue a suspended run.
func (m *Middleware) Resolve(callID string, r state.Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[callID] = r
}

func (m *Middleware) takeResolution(callID string) (state.Resolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resolutions[callID]
	if ok {
		delete(m.resolutions, callID)
	}
	return r, ok
}

// BeforeToolCall suspends the run for any gated tool call lacking a
// recorded resolution; once a resolution has been recorded it is consumed
// exactly once and translated into a ToolDecision.
func (m *Middleware) BeforeToolCall(ctx context.Context, s *state.AgentState, call state.ToolCall) (engine.ToolDecision, error) {
	gate, gated := m.gates[call.Name]
	if !gated {
		return engine.ProceedTool(call), nil
	}

	resolution, ok := m.takeResolution(call.ID)
	if !ok {
		return engine.SuspendTool(&state.Interrupt{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Arguments:  call.Arguments,
			Reason:     "awaiting human approval",
		}), nil
	}

	if !gate.allows(resolution.Decision) {
		return engine.ToolDecision{}, dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments,
			"decision %q is not permitted for tool %q", resolution.Decision, call.Name)
	}

	switch resolution.Decision {
	case state.DecisionApprove:
		return engine.ProceedTool(call), nil
	case state.DecisionEdit:
		edited := call
		edited.Arguments = resolution.EditedArguments
		return engine.ProceedTool(edited), nil
	case state.DecisionReject:
		msg := resolution.RejectMessage
		if msg == "" {
			msg = `{"status":"rejected"}`
		}
		return engine.ReplaceToolResult(msg), nil
	default:
		return engine.ToolDecision{}, dagerr.New(dagerr.KindTool, dagerr.CodeBadArguments,
			"unknown decision %q", resolution.Decision)
	}
}
