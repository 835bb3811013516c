package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	gormlog "github.com/charmbracelet/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Store is the external key-value contract StoreBackend layers hierarchical
// paths on top of (§4.A, §6.4: "Store backend uses keys
// <namespace>/<path>; listings are prefix scans").
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}

// storeRow is the gorm model backing GormStore.
type storeRow struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// GormStore is a Store backed by gorm, grounded on the teacher's own
// sqlite+gorm persistence stack (storage/sqlite.go, storage/gorm_logger.go).
type GormStore struct {
	db *gorm.DB
}

// gormLogAdapter pipes gorm's logger through charmbracelet/log exactly as
// storage/gorm_logger.go does.
type gormLogAdapter struct {
	logger *gormlog.Logger
}

func (g *gormLogAdapter) Printf(format string, args ...any) {
	g.logger.Info(fmt.Sprintf(format, args...))
}

// NewGormStore opens (and migrates) a SQLite-backed store at path, logging
// through l.
func NewGormStore(path string, l *gormlog.Logger) (*GormStore, error) {
	cfg := gormLogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
		LogLevel:                  gormLogger.Warn,
	}
	gl := gormLogger.New(&gormLogAdapter{logger: l}, cfg)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("backend: open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&storeRow{}); err != nil {
		return nil, fmt.Errorf("backend: migrate sqlite store: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row storeRow
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return row.Value, true, nil
}

func (s *GormStore) Put(ctx context.Context, key string, value []byte) error {
	row := storeRow{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&storeRow{}).Error
}

func (s *GormStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var rows []storeRow
	if err := s.db.WithContext(ctx).Where("key LIKE ?", prefix+"%").Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	return keys, nil
}

// MemoryStore is a Store backed by an in-process map, useful for tests and
// for the in-memory checkpoint driver.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
