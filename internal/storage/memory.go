package storage

import (
	"sync"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

// MemoryRepository implements Repository using in-memory storage for tests
type MemoryRepository struct {
	mu      sync.RWMutex
	snap    *domain.Snapshot
	saves   int
	loadErr error
	saveErr error
}

// NewMemoryRepository creates a new in-memory storage repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// SaveSnapshot stores a copy of snap.
func (m *MemoryRepository) SaveSnapshot(snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	cp := snap.Clone()
	m.snap = &cp
	m.saves++
	return nil
}

// LoadSnapshot returns a copy of the stored snapshot.
func (m *MemoryRepository) LoadSnapshot() (domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.loadErr != nil {
		return domain.Snapshot{}, m.loadErr
	}
	if m.snap == nil {
		return domain.Snapshot{}, apperrors.New(apperrors.KindStorage, "No Stored Data", apperrors.ErrNoSnapshot)
	}
	return m.snap.Clone(), nil
}

// Close is a no-op.
func (m *MemoryRepository) Close() error {
	return nil
}

// Saves reports how many snapshots have been written.
func (m *MemoryRepository) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Last returns the most recently written snapshot.
func (m *MemoryRepository) Last() (domain.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return domain.Snapshot{}, false
	}
	return m.snap.Clone(), true
}

// FailLoad makes LoadSnapshot return err; nil restores normal behavior.
func (m *MemoryRepository) FailLoad(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// FailSave makes SaveSnapshot return err; nil restores normal behavior.
func (m *MemoryRepository) FailSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}
