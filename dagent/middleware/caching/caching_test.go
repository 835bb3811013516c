package caching_test

import (
	"context"
	"testing"

	"github.com/package-register/deepagent-go/dagent/middleware/caching"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
)

func TestModifyModelRequestMarksLeadingSystemPrefix(t *testing.T) {
	mw := caching.New()
	req := model.Request{Messages: []state.Message{
		state.NewSystemMessage("you are an agent"),
		state.NewSystemMessage("[compacted context summary]\nearlier turns..."),
		state.NewUserMessage("do the thing"),
		state.NewAssistantMessage("ok"),
	}}

	out, err := mw.ModifyModelRequest(context.Background(), req, state.New())
	if err != nil {
		t.Fatalf("ModifyModelRequest: %v", err)
	}
	if out.CacheBoundary != 2 {
		t.Fatalf("CacheBoundary = %d, want 2", out.CacheBoundary)
	}
	if out.CacheKey == "" {
		t.Fatalf("expected a non-empty cache key once a stable prefix exists")
	}
}

func TestModifyModelRequestNoBoundaryWithoutLeadingSystemMessage(t *testing.T) {
	mw := caching.New()
	req := model.Request{Messages: []state.Message{
		state.NewUserMessage("hello"),
	}}

	out, err := mw.ModifyModelRequest(context.Background(), req, state.New())
	if err != nil {
		t.Fatalf("ModifyModelRequest: %v", err)
	}
	if out.CacheBoundary != 0 {
		t.Fatalf("CacheBoundary = %d, want 0", out.CacheBoundary)
	}
	if out.CacheKey != "" {
		t.Fatalf("CacheKey should be empty when there is no stable prefix")
	}
}

func TestCacheKeyStableAcrossIdenticalPrefixes(t *testing.T) {
	mw := caching.New()
	base := []state.Message{
		state.NewSystemMessage("you are an agent"),
	}
	req1 := model.Request{Messages: append(append([]state.Message(nil), base...), state.NewUserMessage("first"))}
	req2 := model.Request{Messages: append(append([]state.Message(nil), base...), state.NewUserMessage("second"))}

	out1, _ := mw.ModifyModelRequest(context.Background(), req1, state.New())
	out2, _ := mw.ModifyModelRequest(context.Background(), req2, state.New())
	if out1.CacheKey != out2.CacheKey {
		t.Fatalf("cache key should depend only on the stable prefix: %q vs %q", out1.CacheKey, out2.CacheKey)
	}
}
