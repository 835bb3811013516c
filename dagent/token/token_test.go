package token_test

import (
	"context"
	"testing"

	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/token"
)

func TestHeuristicCounterGrowsWithContent(t *testing.T) {
	c := token.NewHeuristicCounter()
	short := []state.Message{state.NewUserMessage("hi")}
	long := []state.Message{state.NewUserMessage("this is a substantially longer message body")}

	if c.Count(context.Background(), long) <= c.Count(context.Background(), short) {
		t.Fatalf("expected longer content to estimate more tokens")
	}
}

func TestMonitorWarningAndCritical(t *testing.T) {
	m := token.NewMonitor(1000)
	if m.IsWarning() || m.IsCritical() {
		t.Fatalf("fresh monitor should not warn")
	}

	m.RecordUsage(token.Usage{PromptTokens: 850, TotalTokens: 850})
	if !m.IsWarning() {
		t.Fatalf("expected warning at 85%% usage (threshold 80%%)")
	}
	if m.IsCritical() {
		t.Fatalf("85%% usage should not yet be critical (threshold 95%%)")
	}
}

func TestMonitorCriticalThreshold(t *testing.T) {
	m := token.NewMonitor(1000)
	m.RecordUsage(token.Usage{TotalTokens: 960})
	if !m.IsCritical() {
		t.Fatalf("expected critical at 96%% usage")
	}
}

func TestMonitorOnCompressionReducesTotals(t *testing.T) {
	m := token.NewMonitor(1000)
	m.RecordUsage(token.Usage{PromptTokens: 500, TotalTokens: 500})
	m.OnCompression(500, 100)

	stats := m.Stats()
	if stats["totalTokens"].(int) != 100 {
		t.Fatalf("totalTokens = %v, want 100", stats["totalTokens"])
	}
	if !m.DrainPendingUpdate() {
		t.Fatalf("expected pending update after compression")
	}
	if m.DrainPendingUpdate() {
		t.Fatalf("DrainPendingUpdate should clear the flag")
	}
}
