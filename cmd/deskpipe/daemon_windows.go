//go:build windows

package main

import "os/exec"

func setDaemonAttr(_ *exec.Cmd) {}
