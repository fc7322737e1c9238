package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskpipe.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "log", c.Log.Dir)
	assert.Equal(t, "sqlite://log/deskpipe.db", c.State.DSN)
	assert.Empty(t, c.Services)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
env = ["LANG=C", "XDG_RUNTIME_DIR=/tmp/run"]
display = ":2"
geometry = "1920x1080"
vnc_port = 5901
listen_port = 6081
web_root = "/opt/novnc"

[log]
dir = "/var/log/deskpipe"
max_size_mb = 10

[state]
dsn = "postgres://u:p@db:5432/deskpipe"

[history]
dsn = "clickhouse://ch:9000?database=ops&table=events"

[server]
listen = "127.0.0.1:6090"
base_path = "/api"

[metrics]
listen = "127.0.0.1:6091"

[[services]]
name = "xvfb"
command = "Xvfb"
args = [":2", "-screen", "0", "1920x1080x24"]
required = true
startup_delay = "1s"
  [services.probe]
  type = "file"
  target = "/tmp/.X11-unix/X2"
  timeout = "5s"

[[services]]
name = "x11vnc"
command = "x11vnc -display :2 -forever"
required = true
  [services.probe]
  type = "tcp"
  target = "127.0.0.1:5901"
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"LANG=C", "XDG_RUNTIME_DIR=/tmp/run"}, c.Env)
	assert.Equal(t, ":2", c.Display)
	assert.Equal(t, "1920x1080", c.Geometry)
	assert.Equal(t, 5901, c.VNCPort)
	assert.Equal(t, 6081, c.ListenPort)
	assert.Equal(t, "/opt/novnc", c.WebRoot)
	assert.Equal(t, "/var/log/deskpipe", c.Log.Dir)
	assert.Equal(t, 10, c.Log.MaxSizeMB)
	assert.Equal(t, "postgres://u:p@db:5432/deskpipe", c.State.DSN)
	assert.Equal(t, "clickhouse://ch:9000?database=ops&table=events", c.History.DSN)
	assert.Equal(t, "127.0.0.1:6090", c.Server.Listen)
	assert.Equal(t, "/api", c.Server.BasePath)
	assert.Equal(t, "127.0.0.1:6091", c.Metrics.Listen)

	require.Len(t, c.Services, 2)
	xvfb := c.Services[0]
	assert.Equal(t, "xvfb", xvfb.Name)
	assert.Equal(t, []string{":2", "-screen", "0", "1920x1080x24"}, xvfb.Args)
	assert.True(t, xvfb.Required)
	assert.Equal(t, time.Second, xvfb.StartupDelay)
	require.NotNil(t, xvfb.Probe)
	assert.Equal(t, "file", xvfb.Probe.Type)
	assert.Equal(t, "/tmp/.X11-unix/X2", xvfb.Probe.Target)
	assert.Equal(t, 5*time.Second, xvfb.Probe.Timeout)

	vnc := c.Services[1]
	assert.Equal(t, "x11vnc -display :2 -forever", vnc.Command)
	require.NotNil(t, vnc.Probe)
	assert.Equal(t, "tcp", vnc.Probe.Type)

	// configured services win over the built-in pipeline
	specs := c.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "xvfb", specs[0].Name)
}

func TestLoadRejectsInvalidService(t *testing.T) {
	path := writeConfig(t, `
[[services]]
name = ""
command = "Xvfb"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestSpecsFallsBackToBuiltinPipeline(t *testing.T) {
	c := Default()
	specs := c.Specs()
	require.Len(t, specs, 4)
	assert.Equal(t, "xvfb", specs[0].Name)
	assert.Equal(t, "fluxbox", specs[1].Name)
	assert.Equal(t, "x11vnc", specs[2].Name)
	assert.Equal(t, "websockify", specs[3].Name)
}

func TestEffectiveValues(t *testing.T) {
	c := Default()
	assert.Equal(t, ":1", c.EffectiveDisplay())
	assert.Equal(t, "/usr/share/novnc", c.EffectiveWebRoot())

	c.Display = ":5"
	c.WebRoot = "/srv/novnc"
	assert.Equal(t, ":5", c.EffectiveDisplay())
	assert.Equal(t, "/srv/novnc", c.EffectiveWebRoot())
}
