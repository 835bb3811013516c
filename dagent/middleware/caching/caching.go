// Package caching implements the caching slot named in the authoritative
// middleware order (§4.C: "... sub-agents → summarization → caching →
// patch ..."). Provider-specific prompt-caching optimizations are
// explicitly out of scope (§1); what this middleware does is the
// provider-agnostic half a caching-aware adapter needs: identify the
// longest stable prefix of a request's messages (content unlikely to
// change between consecutive calls in the same thread) and attach it to
// model.Request as a boundary index plus a content hash, so a provider
// adapter can translate that into whatever mechanism it offers
// (Anthropic per-block cache_control, OpenAI prompt_cache_key) without
// this package knowing which provider is in play.
//
// Grounded on other_examples' picoclaw pkg/agent/context.go, which marks
// its static system-prompt block "ephemeral" for Anthropic's cache_control
// and separately computes a stable prefix for OpenAI's prompt_cache_key,
// keeping the "what is stable" decision in application code and the
// "how the provider caches it" decision in the adapter — the same split
// this middleware draws between ModifyModelRequest and the Model
// implementation.
package caching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
)

// Middleware computes a CacheBoundary/CacheKey pair on every outgoing
// request. It carries no state across calls: the boundary is recomputed
// fresh from the request each time, since a summarization pass may have
// changed where the stable prefix ends.
type Middleware struct{}

// New builds the caching middleware.
func New() *Middleware { return &Middleware{} }

func (m *Middleware) Name() string { return "caching" }

// ModifyModelRequest sets req.CacheBoundary to the end of the longest
// leading run of system messages (the system prompt and any folded
// summarization message, §4.D.3), which is the only part of a request
// this harness can guarantee stays byte-identical across consecutive
// calls in the same thread; everything from the first user/assistant/tool
// message onward is live conversation and not a caching candidate.
func (m *Middleware) ModifyModelRequest(ctx context.Context, req model.Request, s *state.AgentState) (model.Request, error) {
	boundary := stablePrefixLength(req.Messages)
	req.CacheBoundary = boundary
	if boundary > 0 {
		req.CacheKey = hashPrefix(req.Messages[:boundary])
	}
	return req, nil
}

func stablePrefixLength(msgs []state.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role != state.RoleSystem {
			break
		}
		n++
	}
	return n
}

func hashPrefix(msgs []state.Message) string {
	h := sha256.New()
	for _, m := range msgs {
		fmt.Fprintf(h, "%s\x00%s\x00", m.Role, m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
