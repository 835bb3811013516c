package token

import (
	"sync"
	"time"
)

// Usage is one model invocation's token accounting.
type Usage struct {
	TurnNumber       int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
	Timestamp        time.Time
	Duration         time.Duration
}

const maxUsageHistory = 1000

// Monitor tracks cumulative token usage across a run's steps and answers
// the "are we near the context window limit" questions the summarization
// middleware needs (§4.D.3).
type Monitor struct {
	mu                    sync.RWMutex
	maxTokens             int
	totalPromptTokens     int
	totalCompletionTokens int
	totalTokens           int
	turnCount             int
	usageHistory          []Usage
	warningThreshold      float64
	pendingUpdate         bool
}

// NewMonitor creates a monitor sized to the model's context window.
func NewMonitor(maxTokens int) *Monitor {
	return &Monitor{
		maxTokens:        maxTokens,
		usageHistory:     make([]Usage, 0),
		warningThreshold: 0.8,
	}
}

// RecordUsage adds a single-turn usage record.
func (m *Monitor) RecordUsage(u Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalPromptTokens += u.PromptTokens
	m.totalCompletionTokens += u.CompletionTokens
	m.totalTokens += u.TotalTokens
	m.turnCount++
	u.TurnNumber = m.turnCount
	m.usageHistory = append(m.usageHistory, u)

	if len(m.usageHistory) > maxUsageHistory {
		m.usageHistory = m.usageHistory[len(m.usageHistory)-maxUsageHistory:]
	}
}

// Stats returns a snapshot of cumulative statistics.
func (m *Monitor) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	remaining := m.maxTokens - m.totalTokens
	usagePercent := 0.0
	if m.maxTokens > 0 {
		usagePercent = float64(m.totalTokens) / float64(m.maxTokens) * 100
	}

	stats := map[string]any{
		"maxTokens":             m.maxTokens,
		"totalPromptTokens":     m.totalPromptTokens,
		"totalCompletionTokens": m.totalCompletionTokens,
		"totalTokens":           m.totalTokens,
		"remainingTokens":       remaining,
		"usagePercent":          usagePercent,
		"turnCount":             m.turnCount,
	}
	if m.turnCount > 0 {
		stats["avgTotalTokens"] = m.totalTokens / m.turnCount
	}
	return stats
}

// IsWarning reports whether usage has crossed the warning threshold (80%).
func (m *Monitor) IsWarning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxTokens <= 0 {
		return false
	}
	return float64(m.totalTokens)/float64(m.maxTokens) >= m.warningThreshold
}

// IsCritical reports whether usage has crossed 95% of the context window —
// the signal the summarization middleware treats as "compact now" (§4.D.3).
func (m *Monitor) IsCritical() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxTokens <= 0 {
		return false
	}
	return float64(m.totalTokens)/float64(m.maxTokens) >= 0.95
}

// OnCompression adjusts cumulative counts to reflect a successful
// compaction and marks a pending update for any caller polling stats.
func (m *Monitor) OnCompression(beforeTokens, afterTokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := beforeTokens - afterTokens
	if saved <= 0 {
		return
	}
	m.totalPromptTokens -= saved
	if m.totalPromptTokens < 0 {
		m.totalPromptTokens = 0
	}
	m.totalTokens -= saved
	if m.totalTokens < 0 {
		m.totalTokens = 0
	}
	m.pendingUpdate = true
}

// DrainPendingUpdate atomically checks and clears the pending flag.
func (m *Monitor) DrainPendingUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pendingUpdate {
		return false
	}
	m.pendingUpdate = false
	return true
}

// Reset clears all tracked data.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalPromptTokens = 0
	m.totalCompletionTokens = 0
	m.totalTokens = 0
	m.turnCount = 0
	m.usageHistory = make([]Usage, 0)
}
