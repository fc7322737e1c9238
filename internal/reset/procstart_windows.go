//go:build windows

package reset

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// procStartUnix returns the process start time as Unix seconds via
// gopsutil. Returns 0 when unavailable.
func procStartUnix(p *gopsproc.Process) int64 {
	if p == nil || p.Pid <= 0 {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}
