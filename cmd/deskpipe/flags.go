package main

import "time"

const version = "0.3.0"

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

// UpFlags holds overrides for the launch command. Empty/zero values fall
// back to config, then to built-in defaults.
type UpFlags struct {
	Display    string
	Geometry   string
	VNCPort    int
	ListenPort int
	WebRoot    string
	LogDir     string
	Detach     bool
}

// DownFlags holds flags for the teardown command.
type DownFlags struct {
	Grace time.Duration
}
