package checkpoint

import (
	"context"
	"sync"

	"github.com/package-register/deepagent-go/dagent/state"
)

// MemoryCheckpointer is the default Checkpointer: a per-thread append-only
// slice guarded by a mutex. Sufficient for tests and for runs that do not
// need to survive process restart.
type MemoryCheckpointer struct {
	mu   sync.Mutex
	byID map[string][]state.Checkpoint
}

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{byID: make(map[string][]state.Checkpoint)}
}

func (m *MemoryCheckpointer) Save(ctx context.Context, cp state.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[cp.ThreadID] = append(m.byID[cp.ThreadID], cp)
	return nil
}

func (m *MemoryCheckpointer) Latest(ctx context.Context, threadID string) (state.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hist := m.byID[threadID]
	if len(hist) == 0 {
		return state.Checkpoint{}, false, nil
	}
	return hist[len(hist)-1], true, nil
}

func (m *MemoryCheckpointer) At(ctx context.Context, threadID string, step int) (state.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cp := range m.byID[threadID] {
		if cp.Step == step {
			return cp, true, nil
		}
	}
	return state.Checkpoint{}, false, nil
}

func (m *MemoryCheckpointer) History(ctx context.Context, threadID string) ([]state.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]state.Checkpoint, len(m.byID[threadID]))
	copy(out, m.byID[threadID])
	return out, nil
}

var _ Checkpointer = (*MemoryCheckpointer)(nil)
