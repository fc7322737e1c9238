package readiness

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProbe(t *testing.T) {
	dir := t.TempDir()
	p := FileProbe{Path: filepath.Join(dir, "sock")}

	ok, err := p.Ready()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sock"), []byte("x"), 0o600))
	ok, err = p.Ready()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTCPProbe(t *testing.T) {
	p := TCPProbe{Addr: "127.0.0.1:1"} // reserved port, nothing listens
	ok, err := p.Ready()
	require.NoError(t, err)
	assert.False(t, ok)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	p = TCPProbe{Addr: ln.Addr().String()}
	ok, err = p.Ready()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommandProbe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell tools")
	}
	ok, err := CommandProbe{Command: "true"}.Ready()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CommandProbe{Command: "false"}.Ready()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWaitSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ready")
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = os.WriteFile(path, []byte("x"), 0o600)
	}()
	err := Wait(context.Background(), FileProbe{Path: path}, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, err)
}

func TestWaitTimeout(t *testing.T) {
	err := Wait(context.Background(), FileProbe{Path: filepath.Join(t.TempDir(), "never")}, 200*time.Millisecond, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestWaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	err := Wait(ctx, FileProbe{Path: filepath.Join(t.TempDir(), "never")}, 10*time.Second, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	begin := time.Now()
	require.NoError(t, Sleep(context.Background(), 100*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
}
