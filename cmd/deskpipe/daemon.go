package main

import (
	"fmt"
	"os"
	"os/exec"
)

// daemonize re-executes the current invocation without --detach in a new
// session and returns immediately, so the parent can exit 0 while the
// pipeline keeps running in the background.
func daemonize() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	var newArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "--detach" || arg == "--detach=true" {
			continue
		}
		newArgs = append(newArgs, arg)
	}

	// #nosec G204
	cmd := exec.Command(executable, newArgs...)
	setDaemonAttr(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}
	fmt.Printf("deskpipe running in the background (pid %d)\n", cmd.Process.Pid)
	return nil
}
