// Package patch implements §4.D.5: dangling tool-call repair. It runs as a
// before_model hook, just ahead of each model invocation, so resumption
// after an interrupt (or a middleware that chose not to execute a call) is
// always safe to hand back to the model.
//
// Grounded on pipeline/errors.go's ToolError/ClassifyToolError pattern for
// attaching a structured code to a failure, retargeted here at
// cancellation payloads instead of EDA error classification.
package patch

import (
	"context"
	"encoding/json"

	"github.com/package-register/deepagent-go/dagent/engine"
	"github.com/package-register/deepagent-go/dagent/logger"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

// Middleware scans message history for assistant tool calls that were
// never answered and for assistant messages whose only tool calls name an
// unregistered tool.
type Middleware struct {
	registry *tool.Registry
}

// New builds the patch middleware, validating tool calls against registry.
func New(registry *tool.Registry) *Middleware {
	return &Middleware{registry: registry}
}

func (m *Middleware) Name() string { return "patch" }

// BeforeModel repairs s's message history in place and always continues.
func (m *Middleware) BeforeModel(ctx context.Context, s *state.AgentState) (engine.ModelDecision, error) {
	msgs := s.SnapshotMessages()
	patched, changed := m.repair(msgs)
	if changed {
		s.ReplaceMessages(patched)
	}
	return engine.ContinueModel(), nil
}

// repair returns a corrected copy of msgs (or msgs itself and false if no
// repair was needed).
func (m *Middleware) repair(msgs []state.Message) ([]state.Message, bool) {
	answered := make(map[string]bool)
	for _, msg := range msgs {
		if msg.Role == state.RoleTool && msg.ToolCallID != "" {
			answered[msg.ToolCallID] = true
		}
	}

	out := make([]state.Message, 0, len(msgs))
	var trailingCancellations []state.Message
	changed := false

	for _, msg := range msgs {
		if msg.Role != state.RoleAssistant || len(msg.ToolCalls) == 0 {
			out = append(out, msg)
			continue
		}

		validCalls := make([]state.ToolCall, 0, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			if _, ok := m.registry.Lookup(call.Name); !ok {
				logger.L().Warn("patch: dropping assistant tool call referencing unknown tool",
					"tool", call.Name, "call_id", call.ID)
				changed = true
				continue
			}
			validCalls = append(validCalls, call)
		}

		if len(validCalls) == 0 {
			changed = true
			if msg.Content == "" {
				// The whole message's content was invalid tool calls; strip it.
				continue
			}
			// Keep the assistant's text, minus the invalid calls.
			msg.ToolCalls = nil
			out = append(out, msg)
			continue
		}

		if len(validCalls) != len(msg.ToolCalls) {
			msg.ToolCalls = validCalls
			changed = true
		}
		out = append(out, msg)

		for _, call := range validCalls {
			if answered[call.ID] {
				continue
			}
			changed = true
			trailingCancellations = append(trailingCancellations, cancellationMessage(call))
		}
	}

	out = append(out, trailingCancellations...)
	return out, changed
}

func cancellationMessage(call state.ToolCall) state.Message {
	payload, err := json.Marshal(map[string]string{
		"status": "cancelled",
		"reason": "no tool response was recorded before the next model turn",
	})
	if err != nil {
		payload = []byte(`{"status":"cancelled"}`)
	}
	return state.NewToolMessage(call.ID, string(payload))
}
