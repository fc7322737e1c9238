package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/deskpipe/internal/statestore"
)

// DB implements statestore.Store for PostgreSQL via the pgx stdlib driver.
// Useful when several session hosts share one state database.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_state(
			service TEXT PRIMARY KEY,
			pid INTEGER NOT NULL,
			start_unix BIGINT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			stopped_at TIMESTAMPTZ NULL,
			running BOOLEAN NOT NULL,
			exit_err TEXT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_state_running ON pipeline_state(running);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) RecordLaunch(ctx context.Context, rec statestore.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pipeline_state(service, pid, start_unix, started_at, stopped_at, running, exit_err, updated_at)
		VALUES($1, $2, $3, $4, NULL, TRUE, NULL, $5)
		ON CONFLICT(service) DO UPDATE SET
			pid=EXCLUDED.pid,
			start_unix=EXCLUDED.start_unix,
			started_at=EXCLUDED.started_at,
			stopped_at=NULL,
			running=TRUE,
			exit_err=NULL,
			updated_at=EXCLUDED.updated_at`,
		rec.Service, rec.PID, rec.StartUnix, rec.StartedAt.UTC(), time.Now().UTC())
	return err
}

func (p *DB) RecordExit(ctx context.Context, service string, at time.Time, exitErr error) error {
	var ee sql.NullString
	if exitErr != nil {
		ee = sql.NullString{String: exitErr.Error(), Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		UPDATE pipeline_state SET stopped_at=$1, running=FALSE, exit_err=$2, updated_at=$3
		WHERE service=$4`,
		at.UTC(), ee, time.Now().UTC(), service)
	return err
}

func (p *DB) Active(ctx context.Context) ([]statestore.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT service, pid, start_unix, started_at, stopped_at, running, exit_err
		FROM pipeline_state WHERE running=TRUE ORDER BY started_at`)
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

func (p *DB) Delete(ctx context.Context, service string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM pipeline_state WHERE service=$1`, service)
	return err
}

func (p *DB) Close() error { return p.db.Close() }
