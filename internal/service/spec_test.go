package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandDirectArgs(t *testing.T) {
	s := Spec{Name: "xvfb", Command: "Xvfb", Args: []string{":1", "-screen", "0", "1280x800x24"}}
	cmd := s.BuildCommand()
	require.NotNil(t, cmd)
	assert.Contains(t, cmd.Path, "Xvfb")
	assert.Equal(t, []string{"Xvfb", ":1", "-screen", "0", "1280x800x24"}, cmd.Args)
}

func TestBuildCommandFieldSplit(t *testing.T) {
	s := Spec{Name: "s", Command: "sleep 30"}
	cmd := s.BuildCommand()
	assert.Equal(t, []string{"sleep", "30"}, cmd.Args)
}

func TestBuildCommandShellMetachars(t *testing.T) {
	s := Spec{Name: "s", Command: "echo hi | cat"}
	cmd := s.BuildCommand()
	require.GreaterOrEqual(t, len(cmd.Args), 3)
	assert.Equal(t, "/bin/sh", cmd.Args[0])
	assert.Equal(t, "-c", cmd.Args[1])
}

func TestExecutable(t *testing.T) {
	assert.Equal(t, "Xvfb", (&Spec{Command: "Xvfb", Args: []string{":1"}}).Executable())
	assert.Equal(t, "sleep", (&Spec{Command: "sleep 30"}).Executable())
	assert.Equal(t, "/bin/sh", (&Spec{Command: "sh -c 'echo hi'"}).Executable())
	assert.Equal(t, "", (&Spec{Command: "   "}).Executable())
}

func TestValidate(t *testing.T) {
	require.Error(t, (&Spec{Command: "x"}).Validate())
	require.Error(t, (&Spec{Name: "x"}).Validate())
	require.Error(t, (&Spec{Name: "x", Command: "x", Probe: &ProbeConfig{Type: "pigeon"}}).Validate())
	require.NoError(t, (&Spec{Name: "x", Command: "x"}).Validate())
	require.NoError(t, (&Spec{Name: "x", Command: "x", Probe: &ProbeConfig{Type: "tcp", Target: "127.0.0.1:1"}}).Validate())
}

func TestDefaultPipelineOrder(t *testing.T) {
	specs := DefaultPipeline(Defaults{})
	require.Len(t, specs, 4)
	assert.Equal(t, []string{"xvfb", "fluxbox", "x11vnc", "websockify"}, Names(specs))

	// only the window manager is optional
	assert.True(t, specs[0].Required)
	assert.False(t, specs[1].Required)
	assert.True(t, specs[2].Required)
	assert.True(t, specs[3].Required)
}

func TestDefaultPipelineParams(t *testing.T) {
	specs := DefaultPipeline(Defaults{Display: ":7", VNCPort: 5901, ListenPort: 6090, WebRoot: "/srv/novnc"})

	xvfb := specs[0]
	assert.Equal(t, ":7", xvfb.Args[0])
	require.NotNil(t, xvfb.Probe)
	assert.Equal(t, "file", xvfb.Probe.Type)
	assert.Equal(t, "/tmp/.X11-unix/X7", xvfb.Probe.Target)

	vnc := specs[2]
	require.NotNil(t, vnc.Probe)
	assert.Equal(t, "tcp", vnc.Probe.Type)
	assert.Equal(t, "127.0.0.1:5901", vnc.Probe.Target)
	assert.Contains(t, vnc.Env, "DISPLAY=:7")

	ws := specs[3]
	assert.Equal(t, []string{"--web", "/srv/novnc", "6090", "localhost:5901"}, ws.Args)
}

func TestDisplaySocket(t *testing.T) {
	assert.Equal(t, "/tmp/.X11-unix/X1", DisplaySocket(":1"))
	assert.Equal(t, "/tmp/.X11-unix/X99", DisplaySocket(":99.0"))
}

func TestDefaultPipelineFallbacks(t *testing.T) {
	specs := DefaultPipeline(Defaults{})
	ws := specs[3]
	assert.Equal(t, []string{"--web", "/usr/share/novnc", "6080", "localhost:5900"}, ws.Args)
	require.NotNil(t, ws.Probe)
	assert.Equal(t, 15*time.Second, ws.Probe.Timeout)
}
