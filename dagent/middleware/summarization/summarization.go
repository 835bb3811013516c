// Package summarization implements §4.D.3: token-aware context compaction.
// It watches the cumulative token count of the live message list and, once
// it crosses a configured high-water mark, replaces the oldest contiguous
// run of conversation turns with a single synthetic summary message,
// leaving enough recent turns untouched to land back under the low-water
// mark.
//
// Grounded on memory/compressor.go's LLMCompressor (ratio-gated trigger,
// system/conversation split, recent-turns-kept floor, a bounded-timeout
// summarization call over the dropped prefix) and memory/summary.go's
// summary-message marker convention, adapted from a fixed keep-count to a
// token-budget-driven cut point and from message-index splitting to
// turn-grouped splitting so a tool call can never be separated from its
// answer.
package summarization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/package-register/deepagent-go/dagent/config"
	"github.com/package-register/deepagent-go/dagent/engine"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/token"
)

// summaryPrefix marks a message as a prior compaction's summary, so a later
// pass folds it into the next dropped prefix instead of stacking an
// ever-growing chain of nested summaries.
const summaryPrefix = "[compacted context summary]\n"

// isSummaryMessage reports whether content was produced by a prior pass.
func isSummaryMessage(content string) bool {
	return strings.HasPrefix(content, summaryPrefix)
}

const summarizePrompt = "Summarize the following conversation history concisely, preserving facts, decisions, open questions, and file paths mentioned. Write plain prose, no preamble."

// minKeptTurns is the floor on how many of the most recent turn-groups are
// never eligible for compaction, regardless of how aggressively the
// low-water mark would otherwise let the cut point advance.
const minKeptTurns = 1

// Middleware is a BeforeModelMiddleware that compacts s.Messages in place
// when their token count crosses cfg.SummarizationHighWaterTokens.
type Middleware struct {
	model   model.Model
	counter model.TokenCounter
	cfg     config.Config
	monitor *token.Monitor
}

// New builds the summarization middleware. m is the model invoked to
// produce summaries (the harness's main model is a reasonable default);
// counter defaults to token.NewHeuristicCounter when nil.
func New(m model.Model, counter model.TokenCounter, cfg config.Config) *Middleware {
	if counter == nil {
		counter = token.NewHeuristicCounter()
	}
	return &Middleware{
		model:   m,
		counter: counter,
		cfg:     cfg,
		monitor: token.NewMonitor(cfg.SummarizationHighWaterTokens),
	}
}

func (m *Middleware) Name() string { return "summarization" }

// Monitor exposes the cumulative accounting side-channel for callers that
// want to surface usage stats (e.g. a status command), independent of the
// compaction decision itself, which is driven directly by the configured
// high/low-water marks.
func (m *Middleware) Monitor() *token.Monitor { return m.monitor }

// BeforeModel recounts the live message list and, if it is at or above the
// high-water mark, compacts the oldest eligible turn-groups until the
// projected total lands under the low-water mark or only the floor of
// recent turns remains.
func (m *Middleware) BeforeModel(ctx context.Context, s *state.AgentState) (engine.ModelDecision, error) {
	msgs := s.SnapshotMessages()
	before := m.counter.Count(ctx, msgs)
	if before < m.cfg.SummarizationHighWaterTokens {
		return engine.ContinueModel(), nil
	}

	compacted, after, err := m.compact(ctx, msgs)
	if err != nil {
		return engine.ModelDecision{}, err
	}
	if compacted == nil {
		return engine.ContinueModel(), nil
	}

	s.ReplaceMessages(compacted)
	m.monitor.OnCompression(before, after)
	return engine.ContinueModel(), nil
}

// compact returns the patched message slice and its recounted token total,
// or (nil, 0, nil) if there was nothing eligible to drop.
func (m *Middleware) compact(ctx context.Context, msgs []state.Message) ([]state.Message, int, error) {
	var systemMsgs, conversation []state.Message
	for _, msg := range msgs {
		if msg.Role == state.RoleSystem && !isSummaryMessage(msg.Content) {
			systemMsgs = append(systemMsgs, msg)
			continue
		}
		if msg.Role == state.RoleSystem {
			// a previous pass's summary message: treated as part of the
			// conversation so it can be folded into a later, larger summary.
			conversation = append(conversation, msg)
			continue
		}
		conversation = append(conversation, msg)
	}

	groups := groupByTurn(conversation)
	if len(groups) <= minKeptTurns {
		return nil, 0, nil
	}

	// Find the smallest cut (measured in groups dropped) whose remaining
	// token count lands at or under the low-water mark, never dropping past
	// the kept floor.
	cut := 1
	for cut < len(groups)-minKeptTurns+1 {
		kept := flatten(groups[cut:])
		projected := m.counter.Count(ctx, append(append([]state.Message(nil), systemMsgs...), kept...))
		if projected <= m.cfg.SummarizationLowWaterTokens {
			break
		}
		cut++
	}
	if cut >= len(groups) {
		cut = len(groups) - minKeptTurns
	}
	if cut <= 0 {
		return nil, 0, nil
	}

	dropped := flatten(groups[:cut])
	kept := flatten(groups[cut:])

	summary, err := m.summarize(ctx, dropped)
	if err != nil {
		return nil, 0, err
	}

	out := make([]state.Message, 0, len(systemMsgs)+1+len(kept))
	out = append(out, systemMsgs...)
	out = append(out, state.NewSystemMessage(summaryPrefix+summary))
	out = append(out, kept...)

	after := m.counter.Count(ctx, out)
	return out, after, nil
}

// summarize invokes the model over dropped's transcript text.
func (m *Middleware) summarize(ctx context.Context, dropped []state.Message) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := model.Request{
		Messages: []state.Message{
			state.NewSystemMessage(summarizePrompt),
			state.NewUserMessage(renderTranscript(dropped)),
		},
	}
	ch, err := m.model.Generate(sctx, req)
	if err != nil {
		return "", fmt.Errorf("summarization: generate: %w", err)
	}

	var last model.Response
	for resp := range ch {
		last = resp
	}
	if last.Error != nil {
		return "", fmt.Errorf("summarization: generate: %w", last.Error)
	}
	if len(last.Choices) == 0 {
		return "", fmt.Errorf("summarization: generate: empty response")
	}
	return last.Choices[0].Message.Content, nil
}

// renderTranscript flattens messages to a role-tagged plain-text transcript
// for the summarization prompt.
func renderTranscript(msgs []state.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		for _, tc := range msg.ToolCalls {
			fmt.Fprintf(&b, "  tool_call %s(%s) -> %v\n", tc.Name, tc.ID, tc.Arguments)
		}
	}
	return b.String()
}

// groupByTurn splits conversation into atomic units, each starting at a
// user message and absorbing every message up to (not including) the next
// user message. Since an assistant's tool calls and the tool messages
// answering them always fall between one user message and the next, this
// grouping can never cut a call away from its response.
func groupByTurn(conversation []state.Message) [][]state.Message {
	var groups [][]state.Message
	var current []state.Message
	for _, msg := range conversation {
		if msg.Role == state.RoleUser && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, msg)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func flatten(groups [][]state.Message) []state.Message {
	var out []state.Message
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
