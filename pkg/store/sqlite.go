// Package store persists run history in a SQLite database so finished
// tournaments can be inspected after the process exits.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/arenakit/arena/pkg/simulation"
)

const (
	runTable   = "arena_runs"
	roundTable = "arena_rounds"
)

// Open opens (or creates) the SQLite database at path. Use ":memory:" for
// an ephemeral database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// RunStore persists runs and their round records.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a SQLite-backed run store and ensures schema.
func NewRunStore(db *sql.DB) (*RunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &RunStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0,
			snapshot_json BLOB
		);`, runTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			round_json BLOB NOT NULL,
			PRIMARY KEY(run_id, round)
		);`, roundTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_run ON %s(run_id);`, roundTable, roundTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun registers a new run and returns its id.
func (s *RunStore) BeginRun(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	now := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, status, started_at) VALUES (?, ?, ?)", runTable),
		runID, string(simulation.StatusRunning), now)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// SaveRound persists one completed round for the run.
func (s *RunStore) SaveRound(ctx context.Context, runID string, rr simulation.RoundResult) error {
	payload, err := json.Marshal(rr)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (run_id, round, round_json) VALUES (?, ?, ?)", roundTable),
		runID, rr.Round, payload)
	return err
}

// FinishRun records the final status and snapshot of the run.
func (s *RunStore) FinishRun(ctx context.Context, runID string, snap *simulation.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	now := time.Now().UTC().UnixMilli()
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET status = ?, finished_at = ?, snapshot_json = ? WHERE id = ?", runTable),
		string(snap.Status), now, payload, runID)
	return err
}

// LoadRounds returns the run's rounds in order.
func (s *RunStore) LoadRounds(ctx context.Context, runID string) ([]simulation.RoundResult, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT round_json FROM %s WHERE run_id = ? ORDER BY round", roundTable),
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []simulation.RoundResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rr simulation.RoundResult
		if err := json.Unmarshal(payload, &rr); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// RunInfo summarizes one stored run.
type RunInfo struct {
	ID         string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ListRuns returns stored runs, most recent first.
func (s *RunStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, status, started_at, finished_at FROM %s ORDER BY started_at DESC", runTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var started, finished int64
		if err := rows.Scan(&info.ID, &info.Status, &started, &finished); err != nil {
			return nil, err
		}
		info.StartedAt = time.UnixMilli(started).UTC()
		if finished > 0 {
			info.FinishedAt = time.UnixMilli(finished).UTC()
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// LoadSnapshot returns the final snapshot stored for the run, or nil if
// the run never finished.
func (s *RunStore) LoadSnapshot(ctx context.Context, runID string) (*simulation.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT snapshot_json FROM %s WHERE id = ?", runTable),
		runID).Scan(&payload)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var snap simulation.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
