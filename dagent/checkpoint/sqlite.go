package checkpoint

import (
	gormlog "github.com/charmbracelet/log"

	"github.com/package-register/deepagent-go/dagent/backend"
)

// NewSQLiteCheckpointer opens a SQLite-backed Checkpointer at path, reusing
// backend.GormStore's gorm+sqlite wiring rather than re-deriving it, so the
// checkpoint table and the store-backend table share one persistence stack.
func NewSQLiteCheckpointer(path string, l *gormlog.Logger) (*StoreCheckpointer, error) {
	store, err := backend.NewGormStore(path, l)
	if err != nil {
		return nil, err
	}
	return NewStoreCheckpointer(store), nil
}
