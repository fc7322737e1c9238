package deskpipe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/deskpipe/internal/config"
	"github.com/loykin/deskpipe/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Log.Dir = filepath.Join(dir, "log")
	cfg.State.DSN = "sqlite://" + filepath.Join(dir, "state.db")
	cfg.WebRoot = filepath.Join(dir, "no-such-webroot")
	return cfg
}

func TestSessionLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires unix sleep")
	}
	cfg := testConfig(t)
	cfg.Services = []service.Spec{
		{Name: "display", Command: "sleep 30", Required: true},
		{Name: "bridge", Command: "sleep 30", Required: true},
	}

	s, err := NewSession(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, 0, s.Reset(context.Background()))

	require.NoError(t, s.Launch(context.Background()))
	sts := s.Statuses()
	require.Len(t, sts, 2)
	assert.Equal(t, "display", sts[0].Service)
	assert.True(t, sts[0].Running)

	s.Stop(2 * time.Second)
	for _, st := range s.Statuses() {
		assert.False(t, st.Running)
	}
	require.NoError(t, s.Close())

	// the session log recorded the run, including the web root warning
	data, err := os.ReadFile(filepath.Join(cfg.Log.Dir, "session.log"))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "WARN web root")
	assert.Contains(t, out, "started display")
	assert.Contains(t, out, "started bridge")
}

func TestSessionLaunchMissingRequired(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires unix sleep")
	}
	cfg := testConfig(t)
	cfg.Services = []service.Spec{
		{Name: "broken", Command: "deskpipe-no-such-tool-xyz", Required: true},
	}

	s, err := NewSession(cfg, nil)
	require.NoError(t, err)
	defer func() {
		s.Stop(time.Second)
		_ = s.Close()
	}()

	err = s.Launch(context.Background())
	require.Error(t, err)
	assert.True(t, IsMissingDependency(err))
}

func TestNewSessionNilConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	s, err := NewSession(nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.DirExists(t, filepath.Join(dir, "log"))
	assert.FileExists(t, filepath.Join(dir, "log", "deskpipe.db"))
}

func TestDefaultPipelineExported(t *testing.T) {
	specs := DefaultPipeline(service.Defaults{})
	require.Len(t, specs, 4)
	assert.Equal(t, "xvfb", specs[0].Name)
	assert.Equal(t, "websockify", specs[3].Name)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "log", cfg.Log.Dir)
}
