//go:build windows

package pipeline

import (
	"os"
	"os/exec"
)

func setSysProcAttr(_ *exec.Cmd) {}

func terminateGroup(pid int) error { return killGroup(pid) }

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
