package readiness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Probe is a strategy that determines whether a freshly launched service
// is ready for the next pipeline stage. Implementations must be safe for
// repeated calls.
type Probe interface {
	// Ready returns true once the service is usable.
	Ready() (bool, error)
	// Describe returns a human-readable description of the probe.
	Describe() string
}

// TCPProbe is ready when a TCP connection to Addr succeeds. Used for the
// VNC server and the WebSocket bridge ports.
type TCPProbe struct{ Addr string }

func (p TCPProbe) Ready() (bool, error) {
	conn, err := net.DialTimeout("tcp", p.Addr, 250*time.Millisecond)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}

func (p TCPProbe) Describe() string { return "tcp:" + p.Addr }

// FileProbe is ready when Path exists. Used for the X display socket.
type FileProbe struct{ Path string }

func (p FileProbe) Ready() (bool, error) {
	if _, err := os.Stat(p.Path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p FileProbe) Describe() string { return "file:" + p.Path }

// CommandProbe runs a command that should exit 0 once the service is ready.
type CommandProbe struct{ Command string }

func (p CommandProbe) Ready() (bool, error) {
	cmd := buildShellAwareCommand(p.Command)
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// non-zero exit code means not ready yet
		return false, nil
	}
	return false, err
}

func (p CommandProbe) Describe() string { return "cmd:" + p.Command }

// buildShellAwareCommand avoids invoking a shell unless obvious shell
// metacharacters are present (G204 mitigation).
func buildShellAwareCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(parts[0], args...)
}

// ErrTimeout is returned by Wait when the probe did not pass in time.
var ErrTimeout = errors.New("readiness timeout")

// Wait polls p every interval until it reports ready, the timeout elapses,
// or ctx is canceled. A zero interval defaults to 100ms; a zero timeout
// defaults to 10s.
func Wait(ctx context.Context, p Probe, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		ok, err := p.Ready()
		if err != nil {
			return fmt.Errorf("probe %s: %w", p.Describe(), err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("probe %s after %s: %w", p.Describe(), timeout, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Sleep blocks for d or until ctx is canceled. It is the fixed-delay
// fallback for services without a configured probe.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
