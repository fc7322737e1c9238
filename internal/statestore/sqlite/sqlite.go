package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/deskpipe/internal/statestore"
)

// DB implements statestore.Store for SQLite (modernc.org/sqlite driver,
// CGO-free). Path is a filesystem location; use ":memory:" for tests.
type DB struct {
	db *sql.DB
}

func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_state(
			service TEXT PRIMARY KEY,
			pid INTEGER NOT NULL,
			start_unix INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL,
			stopped_at TIMESTAMP NULL,
			running BOOLEAN NOT NULL,
			exit_err TEXT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_state_running ON pipeline_state(running);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) RecordLaunch(ctx context.Context, rec statestore.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_state(service, pid, start_unix, started_at, stopped_at, running, exit_err, updated_at)
		VALUES(?, ?, ?, ?, NULL, 1, NULL, ?)
		ON CONFLICT(service) DO UPDATE SET
			pid=excluded.pid,
			start_unix=excluded.start_unix,
			started_at=excluded.started_at,
			stopped_at=NULL,
			running=1,
			exit_err=NULL,
			updated_at=excluded.updated_at`,
		rec.Service, rec.PID, rec.StartUnix, rec.StartedAt.UTC(), time.Now().UTC())
	return err
}

func (s *DB) RecordExit(ctx context.Context, service string, at time.Time, exitErr error) error {
	var ee sql.NullString
	if exitErr != nil {
		ee = sql.NullString{String: exitErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_state SET stopped_at=?, running=0, exit_err=?, updated_at=?
		WHERE service=?`,
		at.UTC(), ee, time.Now().UTC(), service)
	return err
}

func (s *DB) Active(ctx context.Context) ([]statestore.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, pid, start_unix, started_at, stopped_at, running, exit_err
		FROM pipeline_state WHERE running=1 ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []statestore.Record
	for rows.Next() {
		var r statestore.Record
		if err := rows.Scan(&r.Service, &r.PID, &r.StartUnix, &r.StartedAt, &r.StoppedAt, &r.Running, &r.ExitErr); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) Delete(ctx context.Context, service string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_state WHERE service=?`, service)
	return err
}

func (s *DB) Close() error { return s.db.Close() }
