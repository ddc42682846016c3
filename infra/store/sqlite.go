// Package store persists orchestrator state and finished session reports.
// The SQLite store is the production implementation; MemoryStore backs tests.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tiimber/ev-smart-charger/core/charger"
	"github.com/Tiimber/ev-smart-charger/core/model"
)

// SQLiteStore persists state to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS app_state (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        updated INTEGER,
        state TEXT
    );
    CREATE TABLE IF NOT EXISTS session_reports (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT,
        ended INTEGER,
        report TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save writes the single state row, replacing any previous snapshot.
func (s *SQLiteStore) Save(state charger.PersistedState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO app_state (id, updated, state) VALUES (1, ?, ?)
         ON CONFLICT(id) DO UPDATE SET updated = excluded.updated, state = excluded.state`,
		time.Now().Unix(), string(b))
	return err
}

// Load returns the persisted state. ok is false when no snapshot exists yet.
func (s *SQLiteStore) Load() (state charger.PersistedState, ok bool, err error) {
	var data string
	err = s.db.QueryRow(`SELECT state FROM app_state WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return charger.PersistedState{}, false, nil
	}
	if err != nil {
		return charger.PersistedState{}, false, err
	}
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return charger.PersistedState{}, false, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, true, nil
}

// AppendReport writes a finished session report.
func (s *SQLiteStore) AppendReport(report model.SessionReport) error {
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO session_reports (session_id, ended, report) VALUES (?, ?, ?)`,
		report.ID, report.EndTime.Unix(), string(b))
	return err
}

// Reports returns finished session reports ending at or after since, oldest
// first.
func (s *SQLiteStore) Reports(since time.Time) ([]model.SessionReport, error) {
	rows, err := s.db.Query(
		`SELECT report FROM session_reports WHERE ended >= ? ORDER BY ended`,
		since.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.SessionReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.SessionReport
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
