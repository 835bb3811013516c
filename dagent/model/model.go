// Package model defines the narrow contract this module expects of an LLM
// provider. The provider itself is out of scope (§1, §9): callers supply a
// Model implementation wrapping whatever SDK they use, and the engine,
// summarization middleware, and token package all talk only to this
// interface.
package model

import (
	"context"

	"github.com/package-register/deepagent-go/dagent/state"
)

// GenerationConfig carries the knobs a caller may set on a single request.
type GenerationConfig struct {
	Stream      bool
	MaxTokens   int
	Temperature float64
}

// Request is one turn's worth of context sent to the model: the full
// message history plus generation options and the tool declarations the
// assistant may call.
type Request struct {
	Messages         []state.Message
	GenerationConfig GenerationConfig
	Tools            []ToolDeclaration

	// CacheBoundary is the index into Messages up to which content is
	// expected to stay byte-identical across consecutive requests in the
	// same thread (system prompt and any summarized prefix). A provider adapter translates this into whatever
	// prefix-caching mechanism it offers; the harness itself does not
	// implement provider-specific caching (out of scope, §1) and leaves
	// CacheBoundary at 0 when nothing is stable enough to mark.
	CacheBoundary int

	// CacheKey is a stable hash of the messages up to CacheBoundary,
	// suitable for an adapter that keys its cache off an opaque string
	// (e.g. an OpenAI-style prompt_cache_key) rather than content hashing
	// internally.
	CacheKey string
}

// ToolDeclaration is the wire shape a Model needs to advertise a callable
// tool; dagent/tool.Tool.Declaration() produces these.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Usage reports token accounting for one Response, when the provider
// supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Choice is one candidate completion. Providers that do not support
// multiple candidates populate exactly one.
type Choice struct {
	Message state.Message
}

// Response is either a terminal error or a completion. Error is non-nil
// only for the final value sent on a streaming channel when the
// underlying call failed; callers must check it before reading Choices.
type Response struct {
	Model   string
	Choices []Choice
	Usage   *Usage
	Error   error
	Done    bool
}

// Model is the narrow contract an LLM provider client must satisfy.
// Generate always returns a channel: non-streaming providers send exactly
// one Response with Done true and close the channel; streaming providers
// send incremental Responses and a final one with Done true.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, error)
}

// TokenCounter estimates the token cost of a message slice, used by the
// summarization middleware to decide when to compact (§4.D.3).
type TokenCounter interface {
	Count(ctx context.Context, msgs []state.Message) int
}
