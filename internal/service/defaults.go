package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults parameterizes the built-in remote desktop pipeline:
// virtual display -> window manager -> VNC server -> WebSocket bridge.
type Defaults struct {
	Display    string // X display, e.g. ":1"
	Geometry   string // WIDTHxHEIGHT, color depth is fixed at 24
	VNCPort    int    // local RFB port served by x11vnc
	ListenPort int    // WebSocket port served by websockify
	WebRoot    string // noVNC static assets served by websockify
}

func (d Defaults) withFallbacks() Defaults {
	if d.Display == "" {
		d.Display = ":1"
	}
	if d.Geometry == "" {
		d.Geometry = "1280x800"
	}
	if d.VNCPort == 0 {
		d.VNCPort = 5900
	}
	if d.ListenPort == 0 {
		d.ListenPort = 6080
	}
	if d.WebRoot == "" {
		d.WebRoot = "/usr/share/novnc"
	}
	return d
}

// DisplaySocket returns the unix socket path the X server creates for the
// display, used as a file readiness probe.
func DisplaySocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return "/tmp/.X11-unix/X" + n
}

// DefaultPipeline returns the canonical four-service pipeline in launch
// order. The window manager is optional; everything else is required.
func DefaultPipeline(d Defaults) []Spec {
	d = d.withFallbacks()
	vnc := strconv.Itoa(d.VNCPort)
	listen := strconv.Itoa(d.ListenPort)
	display := "DISPLAY=" + d.Display
	return []Spec{
		{
			Name:     "xvfb",
			Command:  "Xvfb",
			Args:     []string{d.Display, "-screen", "0", d.Geometry + "x24", "-nolisten", "tcp"},
			Required: true,
			Probe: &ProbeConfig{
				Type:    "file",
				Target:  DisplaySocket(d.Display),
				Timeout: 10 * time.Second,
			},
		},
		{
			Name:         "fluxbox",
			Command:      "fluxbox",
			Env:          []string{display},
			Required:     false,
			StartupDelay: time.Second,
		},
		{
			Name:     "x11vnc",
			Command:  "x11vnc",
			Args:     []string{"-display", d.Display, "-rfbport", vnc, "-forever", "-shared", "-nopw", "-quiet"},
			Env:      []string{display},
			Required: true,
			Probe: &ProbeConfig{
				Type:    "tcp",
				Target:  fmt.Sprintf("127.0.0.1:%d", d.VNCPort),
				Timeout: 15 * time.Second,
			},
		},
		{
			Name:     "websockify",
			Command:  "websockify",
			Args:     []string{"--web", d.WebRoot, listen, "localhost:" + vnc},
			Required: true,
			Probe: &ProbeConfig{
				Type:    "tcp",
				Target:  fmt.Sprintf("127.0.0.1:%d", d.ListenPort),
				Timeout: 15 * time.Second,
			},
		},
	}
}

// Names returns the service names of specs in order.
func Names(specs []Spec) []string {
	out := make([]string, 0, len(specs))
	for i := range specs {
		out = append(out, specs[i].Name)
	}
	return out
}
