package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/deskpipe/internal/statestore"
)

func open(t *testing.T) *DB {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	require.NoError(t, st.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestLaunchExitRoundtrip(t *testing.T) {
	ctx := context.Background()
	st := open(t)

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.RecordLaunch(ctx, statestore.Record{
		Service: "xvfb", PID: 4242, StartUnix: 1700000000, StartedAt: started, Running: true,
	}))

	active, err := st.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "xvfb", active[0].Service)
	assert.Equal(t, 4242, active[0].PID)
	assert.Equal(t, int64(1700000000), active[0].StartUnix)
	assert.True(t, active[0].Running)
	assert.False(t, active[0].StoppedAt.Valid)

	require.NoError(t, st.RecordExit(ctx, "xvfb", time.Now(), errors.New("exit status 3")))
	active, err = st.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRecordLaunchUpserts(t *testing.T) {
	ctx := context.Background()
	st := open(t)

	require.NoError(t, st.RecordLaunch(ctx, statestore.Record{
		Service: "x11vnc", PID: 100, StartUnix: 1, StartedAt: time.Now(), Running: true,
	}))
	require.NoError(t, st.RecordExit(ctx, "x11vnc", time.Now(), nil))
	// relaunch replaces the stopped record and clears the exit state
	require.NoError(t, st.RecordLaunch(ctx, statestore.Record{
		Service: "x11vnc", PID: 200, StartUnix: 2, StartedAt: time.Now(), Running: true,
	}))

	active, err := st.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 200, active[0].PID)
	assert.False(t, active[0].ExitErr.Valid)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	st := open(t)
	require.NoError(t, st.RecordLaunch(ctx, statestore.Record{
		Service: "websockify", PID: 7, StartUnix: 7, StartedAt: time.Now(), Running: true,
	}))
	require.NoError(t, st.Delete(ctx, "websockify"))
	active, err := st.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
