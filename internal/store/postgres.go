package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var _ Store = (*PostgresStore)(nil)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	id       SMALLINT PRIMARY KEY CHECK (id = 1),
	run_id   TEXT NOT NULL,
	taken_at TIMESTAMPTZ NOT NULL,
	roles    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_rows (
	position   INTEGER PRIMARY KEY,
	key        TEXT NOT NULL,
	row_values TEXT NOT NULL
)`

// PostgresStore keeps the snapshot in PostgreSQL.
type PostgresStore struct {
	db    DB
	close func()
}

// OpenPostgres connects to databaseURL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing connection.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the snapshot tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// Load reads the snapshot.
func (s *PostgresStore) Load(ctx context.Context) (*core.Snapshot, error) {
	var (
		snap  core.Snapshot
		roles string
	)
	err := s.db.QueryRow(ctx,
		"SELECT run_id, taken_at, roles FROM snapshot_meta WHERE id = 1",
	).Scan(&snap.RunID, &snap.TakenAt, &roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot meta: %w", err)
	}
	if snap.Roles, err = decodeRoles(roles); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, "SELECT key, row_values FROM snapshot_rows ORDER BY position")
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

// Save replaces the snapshot inside one transaction, bulk loading rows
// with COPY.
func (s *PostgresStore) Save(ctx context.Context, snap *core.Snapshot) error {
	roles, err := encodeRoles(snap.Roles)
	if err != nil {
		return err
	}

	rows := make([][]any, len(snap.Records))
	for i, rec := range snap.Records {
		values, err := encodeRow(rec.Row)
		if err != nil {
			return err
		}
		rows[i] = []any{int32(i), string(rec.Key), values}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM snapshot_rows"); err != nil {
		return fmt.Errorf("clear snapshot rows: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshot_meta (id, run_id, taken_at, roles) VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET run_id = EXCLUDED.run_id, taken_at = EXCLUDED.taken_at, roles = EXCLUDED.roles`,
		snap.RunID, snap.TakenAt.UTC().Truncate(time.Microsecond), roles,
	); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"snapshot_rows"},
		[]string{"position", "key", "row_values"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy snapshot rows: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy snapshot rows: wrote %d of %d", n, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
