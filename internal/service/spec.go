package service

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ProbeConfig selects the readiness probe used after launching a service.
// Type is one of "delay", "tcp", "file", "command". Target is the probe
// argument: an address for tcp, a path for file, a command line for command.
type ProbeConfig struct {
	Type     string        `json:"type" toml:"type" mapstructure:"type"`
	Target   string        `json:"target" toml:"target" mapstructure:"target"`
	Timeout  time.Duration `json:"timeout" toml:"timeout" mapstructure:"timeout"`
	Interval time.Duration `json:"interval" toml:"interval" mapstructure:"interval"`
}

// Spec describes one service of the pipeline. Specs are built once at
// startup (from config or the built-in pipeline table) and never mutated.
type Spec struct {
	Name         string        `json:"name" toml:"name" mapstructure:"name"`
	Command      string        `json:"command" toml:"command" mapstructure:"command"`
	Args         []string      `json:"args" toml:"args" mapstructure:"args"`
	WorkDir      string        `json:"work_dir" toml:"workdir" mapstructure:"workdir"`
	Env          []string      `json:"env" toml:"env" mapstructure:"env"`
	Required     bool          `json:"required" toml:"required" mapstructure:"required"`
	StartupDelay time.Duration `json:"startup_delay" toml:"startup_delay" mapstructure:"startup_delay"`
	Probe        *ProbeConfig  `json:"probe,omitempty" toml:"probe" mapstructure:"probe"`
}

// Validate reports obviously broken specs before anything is launched.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("service spec has empty name")
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("service %q has empty command", s.Name)
	}
	if s.Probe != nil {
		switch s.Probe.Type {
		case "", "delay", "tcp", "file", "command":
		default:
			return fmt.Errorf("service %q has unknown probe type %q", s.Name, s.Probe.Type)
		}
	}
	return nil
}

// Executable returns the program that will be looked up on PATH.
func (s *Spec) Executable() string {
	if len(s.Args) > 0 {
		return strings.TrimSpace(s.Command)
	}
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return ""
	}
	if fields[0] == "sh" || fields[0] == "/bin/sh" {
		return "/bin/sh"
	}
	return fields[0]
}

// BuildCommand constructs an *exec.Cmd for the spec. When Args are given
// the command is executed directly. Otherwise Command is split on fields,
// falling back to /bin/sh -c only when shell metacharacters are present.
func (s *Spec) BuildCommand() *exec.Cmd {
	if len(s.Args) > 0 {
		// #nosec G204
		return exec.Command(strings.TrimSpace(s.Command), s.Args...)
	}
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}
