package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/package-register/deepagent-go/dagent/backend"
	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/state"
)

// StoreCheckpointer persists checkpoints into a backend.Store, one row per
// (thread_id, step) under the key scheme "<thread_id>/<zero-padded step>".
// This lets a SQLite-backed checkpointer be built by pointing it at a
// backend.GormStore without re-deriving the gorm wiring already built for
// StoreBackend (§6.4).
type StoreCheckpointer struct {
	store backend.Store
}

// NewStoreCheckpointer wraps store, e.g. a *backend.GormStore opened against
// a local sqlite file for dev persistence, or a *backend.MemoryStore for
// tests.
func NewStoreCheckpointer(store backend.Store) *StoreCheckpointer {
	return &StoreCheckpointer{store: store}
}

// stepKey zero-pads step to keep lexicographic and numeric ordering aligned,
// since ListPrefix returns keys in whatever order the Store gives them and
// Latest/History need a correct string sort.
func stepKey(threadID string, step int) string {
	return fmt.Sprintf("%s/%010d", threadID, step)
}

func (c *StoreCheckpointer) Save(ctx context.Context, cp state.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	return c.store.Put(ctx, stepKey(cp.ThreadID, cp.Step), data)
}

func (c *StoreCheckpointer) Latest(ctx context.Context, threadID string) (state.Checkpoint, bool, error) {
	hist, err := c.History(ctx, threadID)
	if err != nil || len(hist) == 0 {
		return state.Checkpoint{}, false, err
	}
	return hist[len(hist)-1], true, nil
}

func (c *StoreCheckpointer) At(ctx context.Context, threadID string, step int) (state.Checkpoint, bool, error) {
	raw, ok, err := c.store.Get(ctx, stepKey(threadID, step))
	if err != nil || !ok {
		return state.Checkpoint{}, false, err
	}
	var cp state.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return state.Checkpoint{}, false, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
	}
	return cp, true, nil
}

func (c *StoreCheckpointer) History(ctx context.Context, threadID string) ([]state.Checkpoint, error) {
	keys, err := c.store.ListPrefix(ctx, threadID+"/")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]state.Checkpoint, 0, len(keys))
	for _, k := range keys {
		raw, ok, err := c.store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var cp state.Checkpoint
		if err := json.Unmarshal(raw, &cp); err != nil {
			return nil, dagerr.Wrap(dagerr.KindBackend, dagerr.CodeIOError, err)
		}
		out = append(out, cp)
	}
	return out, nil
}

var _ Checkpointer = (*StoreCheckpointer)(nil)
