//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setDaemonAttr detaches the child into a new session so it survives the
// terminal closing.
func setDaemonAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
