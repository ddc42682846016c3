package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiimber/ev-smart-charger/core/charger"
	"github.com/Tiimber/ev-smart-charger/core/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok, "fresh database should have no snapshot")

	state := charger.PersistedState{
		UserSettings:   model.DefaultUserSettings(),
		ManualOverride: true,
		ActionLog:      []string{"[2025-03-10 10:00:00] test"},
	}
	require.NoError(t, s.Save(state))

	loaded, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, loaded)

	// Save replaces the single snapshot row.
	state.ManualOverride = false
	require.NoError(t, s.Save(state))
	loaded, _, err = s.Load()
	require.NoError(t, err)
	assert.False(t, loaded.ManualOverride)
}

func TestSQLiteReports(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	old := model.SessionReport{ID: "old", EndTime: now.Add(-48 * time.Hour), AddedKWh: 1}
	recent := model.SessionReport{ID: "recent", EndTime: now, AddedKWh: 2}
	require.NoError(t, s.AppendReport(old))
	require.NoError(t, s.AppendReport(recent))

	reports, err := s.Reports(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "recent", reports[0].ID)

	reports, err = s.Reports(now.Add(-72 * time.Hour))
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()

	_, ok, err := m.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	state := charger.PersistedState{ManualOverride: true}
	require.NoError(t, m.Save(state))
	loaded, ok, err := m.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, loaded.ManualOverride)

	require.NoError(t, m.AppendReport(model.SessionReport{ID: "a", EndTime: time.Now()}))
	reports, err := m.Reports(time.Time{})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}
