package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	run_id   TEXT NOT NULL,
	taken_at TEXT NOT NULL,
	roles    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_rows (
	position   INTEGER PRIMARY KEY,
	key        TEXT NOT NULL,
	row_values TEXT NOT NULL
);`

// SQLiteStore keeps the snapshot in a single-file SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*core.Snapshot, error) {
	var (
		snap    core.Snapshot
		takenAt string
		roles   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT run_id, taken_at, roles FROM snapshot_meta WHERE id = 1",
	).Scan(&snap.RunID, &takenAt, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot meta: %w", err)
	}

	if snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
		return nil, fmt.Errorf("parse taken_at: %w", err)
	}
	if snap.Roles, err = decodeRoles(roles); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, row_values FROM snapshot_rows ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query snapshot rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, values string
		if err := rows.Scan(&key, &values); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		row, err := decodeRow(values)
		if err != nil {
			return nil, err
		}
		snap.Records = append(snap.Records, core.Record{Key: core.IdentityKey(key), Row: row})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return &snap, nil
}

// Save replaces the snapshot inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *core.Snapshot) error {
	roles, err := encodeRoles(snap.Roles)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_rows"); err != nil {
		return fmt.Errorf("clear snapshot rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, run_id, taken_at, roles) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id, taken_at = excluded.taken_at, roles = excluded.roles`,
		snap.RunID, snap.TakenAt.UTC().Format(time.RFC3339Nano), roles,
	); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO snapshot_rows (position, key, row_values) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range snap.Records {
		values, err := encodeRow(rec.Row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, i, string(rec.Key), values); err != nil {
			return fmt.Errorf("insert snapshot row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
