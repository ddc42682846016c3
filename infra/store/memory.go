package store

import (
	"sync"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/charger"
	"github.com/Tiimber/ev-smart-charger/core/model"
)

// MemoryStore keeps state in memory. Used in tests and when persistence is
// disabled.
type MemoryStore struct {
	mu      sync.Mutex
	state   charger.PersistedState
	hasSnap bool
	reports []model.SessionReport
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(state charger.PersistedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.hasSnap = true
	return nil
}

func (m *MemoryStore) Load() (charger.PersistedState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.hasSnap, nil
}

func (m *MemoryStore) AppendReport(report model.SessionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *MemoryStore) Reports(since time.Time) ([]model.SessionReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []model.SessionReport
	for _, r := range m.reports {
		if !r.EndTime.Before(since) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *MemoryStore) Close() error { return nil }
