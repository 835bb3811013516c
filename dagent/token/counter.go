// Package token provides token estimation and cumulative usage tracking
// for the context-window accounting that drives summarization (§4.D.3).
package token

import (
	"context"

	"github.com/package-register/deepagent-go/dagent/state"
)

// HeuristicCounter estimates token counts with a simple length/4
// approximation. It implements model.TokenCounter and is the default
// counter used when no provider-supplied counter is configured.
type HeuristicCounter struct{}

// NewHeuristicCounter creates the default estimator.
func NewHeuristicCounter() *HeuristicCounter {
	return &HeuristicCounter{}
}

// Count sums the heuristic token estimate across all messages, including a
// small per-message overhead for role and tool-call framing.
func (c *HeuristicCounter) Count(ctx context.Context, msgs []state.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)/4 + 4
		for _, tc := range m.ToolCalls {
			total += len(tc.Name)/4 + 8
			for k, v := range tc.Arguments {
				total += len(k)/4 + estimateValue(v)
			}
		}
	}
	return total
}

func estimateValue(v any) int {
	switch t := v.(type) {
	case string:
		return len(t)/4 + 1
	default:
		return 4
	}
}
