package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	subsystem  TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	state      BLOB NOT NULL
);
`

// SQLiteStore persists checkpoints in a single SQLite database, suitable
// for a service hosting many concurrent runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if err := validateRunID(rec.RunID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, status, stage, subsystem, updated_at, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			subsystem = excluded.subsystem,
			updated_at = excluded.updated_at,
			state = excluded.state`,
		rec.RunID, rec.Status, rec.Stage, rec.Subsystem, rec.UpdatedAt, []byte(rec.State))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, runID string) (Record, error) {
	if err := validateRunID(runID); err != nil {
		return Record{}, err
	}
	var rec Record
	var state []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, stage, subsystem, updated_at, state
		FROM checkpoints WHERE run_id = ?`, runID).
		Scan(&rec.RunID, &rec.Status, &rec.Stage, &rec.Subsystem, &rec.UpdatedAt, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load checkpoint: %w", err)
	}
	rec.State = state
	return rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, status, stage, subsystem, updated_at, state
		FROM checkpoints ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var state []byte
		if err := rows.Scan(&rec.RunID, &rec.Status, &rec.Stage, &rec.Subsystem, &rec.UpdatedAt, &state); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		rec.State = state
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	if err := validateRunID(runID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
