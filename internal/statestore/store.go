package statestore

import (
	"context"
	"database/sql"
	"time"
)

// Record is the persisted state of one launched service. It survives the
// supervisor process so the next invocation can terminate leftovers by
// their real PIDs instead of guessing by name. StartUnix is the OS start
// time of the PID and guards against PID reuse.
type Record struct {
	Service   string
	PID       int
	StartUnix int64
	StartedAt time.Time
	StoppedAt sql.NullTime
	Running   bool
	ExitErr   sql.NullString
}

// Store persists launch records for the pipeline services.
// Implementations must be safe for concurrent use.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// RecordLaunch upserts the record for rec.Service as running.
	RecordLaunch(ctx context.Context, rec Record) error
	// RecordExit marks the named service stopped at the given time.
	RecordExit(ctx context.Context, service string, at time.Time, exitErr error) error
	// Active returns records still marked running, from this or a prior run.
	Active(ctx context.Context) ([]Record, error)
	// Delete removes the record for a service.
	Delete(ctx context.Context, service string) error
	Close() error
}
