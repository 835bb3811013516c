package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/package-register/deepagent-go/dagent/checkpoint"
	"github.com/package-register/deepagent-go/dagent/config"
	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/logger"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

// Runner drives one agent run through the §4.C step loop. Middlewares are
// stored in the "authoritative order, bottom-up" the spec names: planner →
// filesystem → sub-agents → summarization → caching → patch → user
// middlewares → human-in-the-loop, with hitl outermost so it sees a fully
// assembled call before it runs. before_model/before_tool_call walk the
// slice forward; after_model/after_tool_call walk it in reverse.
type Runner struct {
	Model        model.Model
	Middlewares  []Middleware
	Tools        *tool.Registry
	Checkpointer checkpoint.Checkpointer
	Config       config.Config
}

// NewRunner builds a Runner. cfg should already have WithDefaults applied.
func NewRunner(m model.Model, middlewares []Middleware, tools *tool.Registry, cp checkpoint.Checkpointer, cfg config.Config) *Runner {
	return &Runner{Model: m, Middlewares: middlewares, Tools: tools, Checkpointer: cp, Config: cfg}
}

// Run executes steps until termination (§4.C step 5): the assistant message
// carries no tool calls, a middleware signals suspend, or ctx is cancelled.
// It returns with s.PendingInterrupt set when the run is suspended rather
// than finished.
func (r *Runner) Run(ctx context.Context, s *state.AgentState) error {
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		terminated, err := r.step(ctx, s, step)
		if err != nil {
			return err
		}
		if terminated {
			return nil
		}
	}
}

// Resume continues a run suspended by a before_tool_call hook (§4.D.6,
// §5). The caller must have already recorded the human decision with
// whichever middleware owns s.PendingInterrupt (e.g. hitl.Middleware.Resolve)
// so that middleware's BeforeToolCall no longer suspends for that call.
// Resume clears the interrupt, re-dispatches only the calls from the last
// assistant turn that are still unanswered — calls that already completed
// before the suspension are left untouched — and then falls through to the
// normal step loop for subsequent turns.
func (r *Runner) Resume(ctx context.Context, s *state.AgentState, stepNum int) error {
	if s.PendingInterrupt == nil {
		return dagerr.New(dagerr.KindState, dagerr.CodeDanglingToolCall, "no pending interrupt to resume")
	}
	s.PendingInterrupt = nil

	msgs := s.SnapshotMessages()
	lastAssistant, ok := lastAssistantToolCalls(msgs)
	if !ok {
		return dagerr.New(dagerr.KindState, dagerr.CodeDanglingToolCall, "no suspended assistant turn found")
	}
	pending := unansweredCalls(msgs, lastAssistant)

	if len(pending) > 0 {
		suspended, err := r.dispatchToolCalls(ctx, s, pending)
		if err != nil {
			return err
		}
		if err := r.save(ctx, s, stepNum); err != nil {
			return err
		}
		if suspended {
			return nil
		}
	}

	return r.Run(ctx, s)
}

// lastAssistantToolCalls returns the tool calls of the most recent
// assistant message, if it carried any.
func lastAssistantToolCalls(msgs []state.Message) ([]state.ToolCall, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == state.RoleAssistant {
			return msgs[i].ToolCalls, len(msgs[i].ToolCalls) > 0
		}
	}
	return nil, false
}

// unansweredCalls filters calls to those with no matching tool message
// anywhere in msgs.
func unansweredCalls(msgs []state.Message, calls []state.ToolCall) []state.ToolCall {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == state.RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}
	var out []state.ToolCall
	for _, c := range calls {
		if !answered[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// step runs one iteration of the §4.C loop and reports whether the run
// should stop (normal termination or suspension).
func (r *Runner) step(ctx context.Context, s *state.AgentState, stepNum int) (bool, error) {
	if err := r.save(ctx, s, stepNum); err != nil {
		return false, err
	}

	// Step 1: before_model, stack order.
	for _, mw := range r.Middlewares {
		h, ok := asBeforeModel(mw)
		if !ok {
			continue
		}
		d, err := h.BeforeModel(ctx, s)
		if err != nil {
			return false, err
		}
		switch d.Kind {
		case ModelShortCircuit:
			s.AppendMessage(d.Message)
			return true, nil
		case ModelSuspend:
			s.PendingInterrupt = d.Interrupt
			if err := r.save(ctx, s, stepNum); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	// Step 2: build request, modify_model_request in stack order.
	req := model.Request{Messages: s.SnapshotMessages(), Tools: r.Tools.Declarations()}
	for _, mw := range r.Middlewares {
		h, ok := asModelRequest(mw)
		if !ok {
			continue
		}
		var err error
		req, err = h.ModifyModelRequest(ctx, req, s)
		if err != nil {
			return false, err
		}
	}

	// Step 3: invoke model, append assistant message, after_model reverse order.
	assistant, err := r.invokeModel(ctx, req)
	if err != nil {
		return false, err
	}
	for i := len(r.Middlewares) - 1; i >= 0; i-- {
		h, ok := asAfterModel(r.Middlewares[i])
		if !ok {
			continue
		}
		assistant, err = h.AfterModel(ctx, s, assistant)
		if err != nil {
			return false, err
		}
	}
	s.AppendMessage(assistant)

	// Step 4: per tool call, before_tool_call / dispatch / after_tool_call.
	if assistant.HasToolCalls() {
		suspended, err := r.dispatchToolCalls(ctx, s, assistant.ToolCalls)
		if err != nil {
			return false, err
		}
		if suspended {
			if err := r.save(ctx, s, stepNum); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	if err := r.save(ctx, s, stepNum); err != nil {
		return false, err
	}

	// Step 5: terminate if no tool calls were issued this turn.
	return !assistant.HasToolCalls(), nil
}

func (r *Runner) save(ctx context.Context, s *state.AgentState, step int) error {
	if r.Checkpointer == nil {
		return nil
	}
	return r.Checkpointer.Save(ctx, state.NewCheckpoint(step, s))
}

// invokeModel drains req's response channel and returns the final
// assistant message, honoring model.Response's "exactly one terminal value
// with Done true" contract. Transport failures (CodeTransport) are retried
// with exponential backoff up to Config.ModelRetryLimit (§7); a malformed
// response (CodeInvalidResponse) indicates the model itself is not going to
// produce something usable by retrying, so it fails the step immediately.
func (r *Runner) invokeModel(ctx context.Context, req model.Request) (state.Message, error) {
	limit := r.Config.ModelRetryLimit
	if limit <= 0 {
		limit = config.Default().ModelRetryLimit
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(limit)), ctx)

	var assistant state.Message
	op := func() error {
		ch, err := r.Model.Generate(ctx, req)
		if err != nil {
			return dagerr.Wrap(dagerr.KindModel, dagerr.CodeTransport, err)
		}
		var last model.Response
		for resp := range ch {
			last = resp
			if resp.Error != nil {
				return backoff.Permanent(dagerr.Wrap(dagerr.KindModel, dagerr.CodeInvalidResponse, resp.Error))
			}
		}
		if len(last.Choices) == 0 {
			return backoff.Permanent(dagerr.New(dagerr.KindModel, dagerr.CodeInvalidResponse, "model returned no choices"))
		}
		assistant = last.Choices[0].Message
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		if perr, ok := err.(*backoff.PermanentError); ok {
			return state.Message{}, perr.Err
		}
		return state.Message{}, err
	}
	return assistant, nil
}

// dispatchToolCalls runs step 4 for every call in one assistant message. If
// every named tool opts into Pure(), calls run concurrently (§5 point 2);
// otherwise they run sequentially. Either way, tool messages are appended
// to s in the original call order, never completion order.
func (r *Runner) dispatchToolCalls(ctx context.Context, s *state.AgentState, calls []state.ToolCall) (suspended bool, err error) {
	results := make([]state.Message, len(calls))
	suspendedAt := -1
	var suspendMu sync.Mutex

	runOne := func(i int) error {
		call := calls[i]
		decision, susp, derr := r.runBeforeToolCall(ctx, s, call)
		if derr != nil {
			return derr
		}
		if susp != nil {
			suspendMu.Lock()
			s.PendingInterrupt = susp
			suspendedAt = i
			suspendMu.Unlock()
			return nil
		}

		var resultText string
		if decision.Kind == ToolReplaceResult {
			resultText = decision.Result
		} else {
			resultText = r.invokeTool(ctx, decision.Call)
			call = decision.Call
		}

		resultText, derr = r.runAfterToolCall(ctx, s, call, resultText)
		if derr != nil {
			return derr
		}
		results[i] = state.NewToolMessage(call.ID, resultText)
		return nil
	}

	if r.allPure(calls) {
		limit := r.Config.ParallelToolLimit
		if limit <= 0 {
			limit = config.Default().ParallelToolLimit
		}
		var g errgroup.Group
		g.SetLimit(limit)
		for i := range calls {
			i := i
			g.Go(func() error { return runOne(i) })
		}
		if err := g.Wait(); err != nil {
			return false, err
		}
	} else {
		for i := range calls {
			if err := runOne(i); err != nil {
				return false, err
			}
			if suspendedAt >= 0 {
				break
			}
		}
	}

	// Append every call that actually completed, in original call order,
	// regardless of whether a later call in the same turn suspended —
	// work already done must survive a suspend/resume round trip.
	for _, msg := range results {
		if msg.Role == "" {
			continue
		}
		s.AppendMessage(msg)
	}
	return suspendedAt >= 0, nil
}

func (r *Runner) allPure(calls []state.ToolCall) bool {
	if len(calls) < 2 {
		return false
	}
	for _, c := range calls {
		t, ok := r.Tools.Lookup(c.Name)
		if !ok || !tool.IsPure(t) {
			return false
		}
	}
	return true
}

// runBeforeToolCall walks before_tool_call hooks in stack order for one
// call, returning either a decision to act on or a non-nil interrupt if a
// hook suspended the run.
func (r *Runner) runBeforeToolCall(ctx context.Context, s *state.AgentState, call state.ToolCall) (ToolDecision, *state.Interrupt, error) {
	decision := ProceedTool(call)
	for _, mw := range r.Middlewares {
		h, ok := asBeforeToolCall(mw)
		if !ok {
			continue
		}
		d, err := h.BeforeToolCall(ctx, s, decision.Call)
		if err != nil {
			return ToolDecision{}, nil, err
		}
		switch d.Kind {
		case ToolSuspend:
			return ToolDecision{}, d.Interrupt, nil
		case ToolReplaceResult:
			return d, nil, nil
		default:
			decision = d
		}
	}
	return decision, nil, nil
}

func (r *Runner) runAfterToolCall(ctx context.Context, s *state.AgentState, call state.ToolCall, result string) (string, error) {
	var err error
	for i := len(r.Middlewares) - 1; i >= 0; i-- {
		h, ok := asAfterToolCall(r.Middlewares[i])
		if !ok {
			continue
		}
		result, err = h.AfterToolCall(ctx, s, call, result)
		if err != nil {
			return "", err
		}
	}
	return result, nil
}

// invokeTool dispatches call to the registered tool, converting an unknown
// tool or a tool-level error into a structured error payload rather than
// aborting the step (§7: a failed call is a typed error message, not a
// halted run).
func (r *Runner) invokeTool(ctx context.Context, call state.ToolCall) string {
	t, ok := r.Tools.Lookup(call.Name)
	if !ok {
		return toolErrorJSON(dagerr.New(dagerr.KindTool, dagerr.CodeUnknownTool, "unknown tool %q", call.Name))
	}
	out, err := t.Call(ctx, call.Arguments)
	if err != nil {
		logger.L().Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "err", err)
		return toolErrorJSON(err)
	}
	return out
}

func toolErrorJSON(err error) string {
	code := dagerr.CodeBadArguments
	kind := dagerr.KindTool
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

// Tools gathers every tool contributed by a ToolContributor middleware.
func Tools(middlewares []Middleware) []tool.Tool {
	var out []tool.Tool
	for _, mw := range middlewares {
		if tc, ok := asToolContributor(mw); ok {
			out = append(out, tc.Tools()...)
		}
	}
	return out
}
