//go:build !windows

package pipeline

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the child in its own process group so signals reach
// helpers it forks (websockify spawns workers).
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(pid int) error { return syscall.Kill(-pid, syscall.SIGTERM) }

func killGroup(pid int) error { return syscall.Kill(-pid, syscall.SIGKILL) }
